package pdfimages

import "github.com/pkg/errors"

var (
	// ErrDocumentOpen is returned when the document cannot be opened at all.
	ErrDocumentOpen = errors.New("failed to open PDF document")

	// ErrUnsupportedFormat is returned for surfaces with an unknown pixel layout.
	ErrUnsupportedFormat = errors.New("unsupported surface format")

	// ErrSurfaceTruncated is returned when a surface holds fewer bytes than its
	// dimensions require.
	ErrSurfaceTruncated = errors.New("surface data truncated")

	// ErrImageTooSmall is returned for images below the configured minimum size.
	ErrImageTooSmall = errors.New("image below minimum size")

	// ErrImageClipped is returned for images the active clip hides entirely.
	ErrImageClipped = errors.New("image clipped out")

	// ErrNoRenderer is returned when the configured renderer has not been registered.
	ErrNoRenderer = errors.New("no region renderer configured")
)
