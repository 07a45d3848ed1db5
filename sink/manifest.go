package sink

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/pdfimages"
)

const manifestSchema = `
CREATE TABLE IF NOT EXISTS images (
	id                TEXT PRIMARY KEY,
	document          TEXT NOT NULL,
	page              INTEGER NOT NULL,
	page_index        INTEGER NOT NULL,
	kind              TEXT NOT NULL,
	source_id         TEXT,
	has_region_render INTEGER NOT NULL,
	x1                REAL NOT NULL,
	y1                REAL NOT NULL,
	x2                REAL NOT NULL,
	y2                REAL NOT NULL,
	dpi               REAL NOT NULL,
	width             INTEGER NOT NULL,
	height            INTEGER NOT NULL,
	file              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS images_document_page ON images (document, page, page_index);
`

// Manifest is a SQLite table of extracted images.
type Manifest struct {
	db       *sql.DB
	document string
}

// OpenManifest opens (or creates) the manifest database at path. Rows are
// attributed to document.
func OpenManifest(path, document string) (*Manifest, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open manifest")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(manifestSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create manifest schema")
	}

	return &Manifest{db: db, document: document}, nil
}

// Record inserts one output image row.
func (m *Manifest) Record(img pdfimages.OutputImage, file string) error {
	var sourceID sql.NullString
	if img.SourceID != "" {
		sourceID = sql.NullString{String: img.SourceID, Valid: true}
	}

	var width, height int
	if img.Image != nil {
		b := img.Image.Bounds()
		width, height = b.Dx(), b.Dy()
	}

	_, err := m.db.Exec(`INSERT INTO images
		(id, document, page, page_index, kind, source_id, has_region_render, x1, y1, x2, y2, dpi, width, height, file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, m.document, img.Page, img.Index, img.Kind.String(), sourceID, img.HasRegionRender,
		img.Bounds.X1, img.Bounds.Y1, img.Bounds.X2, img.Bounds.Y2, img.DPI, width, height, file,
	)
	if err != nil {
		return errors.Wrapf(err, "record image %s", img.ID)
	}
	return nil
}

// Entry is one manifest row.
type Entry struct {
	ID              string
	Page            int
	Index           int
	Kind            string
	SourceID        string
	HasRegionRender bool
	File            string
}

// Entries returns the rows of the manifest's document ordered by page and index.
func (m *Manifest) Entries() ([]Entry, error) {
	rows, err := m.db.Query(`SELECT id, page, page_index, kind, COALESCE(source_id, ''), has_region_render, file
		FROM images WHERE document = ? ORDER BY page, page_index`, m.document)
	if err != nil {
		return nil, errors.Wrap(err, "query manifest")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Page, &e.Index, &e.Kind, &e.SourceID, &e.HasRegionRender, &e.File); err != nil {
			return nil, errors.Wrap(err, "scan manifest row")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate manifest")
}

// Close closes the database.
func (m *Manifest) Close() error {
	return m.db.Close()
}
