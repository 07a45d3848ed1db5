package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/ivanvanderbyl/pdfimages"
	"github.com/ivanvanderbyl/pdfimages/mupdf"
	"github.com/ivanvanderbyl/pdfimages/sink"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "pdfimages",
		Usage: "Extract images from PDF rulebooks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input PDF file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory for extracted images",
				Value:   "images",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars("PDFIMAGES_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "renderer",
				Usage: "Region renderer: pdfium or mupdf (overrides the config file)",
			},
			&cli.IntFlag{
				Name:  "start-page",
				Usage: "Start page number (0-indexed)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "end-page",
				Usage: "End page number (0-indexed)",
				Value: -1,
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "SQLite manifest to record extracted images in",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				Value:   "info",
				Sources: cli.EnvVars("PDFIMAGES_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Log per-page timing and a document summary",
			},
		},
		Action: extractImages,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(lvl).With().Timestamp().Logger()
}

func extractImages(_ context.Context, cmd *cli.Command) error {
	inputPath := cmd.String("input")
	outputDir := cmd.String("output")
	startPage := cmd.Int("start-page")
	endPage := cmd.Int("end-page")

	logger := newLogger(cmd.String("log-level"))

	config, err := pdfimages.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if r := cmd.String("renderer"); r != "" {
		config.Renderer = pdfimages.RendererType(strings.ToLower(r))
		if err := config.Validate(); err != nil {
			return err
		}
	}
	if cmd.Bool("metrics") {
		config.EnableMetricsLogging = true
	}
	config.Logger = logger

	// Initialise pdfium
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialise pdfium")
	}
	defer pool.Close()

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		return errors.Wrap(err, "failed to get pdfium instance")
	}

	info, err := pdfimages.NewExtractorWithConfig(instance, config).GetDocumentInfo(inputPath)
	if err != nil {
		return errors.Wrap(err, "failed to get document info")
	}
	logger.Info().Int("pages", info.PageCount).Int("images", info.ImageCount).Str("input", inputPath).Msg("processing PDF")

	bar := progressbar.NewOptions(info.PageCount,
		progressbar.OptionSetDescription("analyzing pages"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
	)
	config.Progress = func(done, total int) {
		bar.ChangeMax(total)
		_ = bar.Set(done)
	}

	extractor := pdfimages.NewExtractorWithConfig(instance, config)
	extractor.RegisterRenderer(pdfimages.RendererMuPDF, mupdf.Opener)

	var outputs []pdfimages.OutputImage
	if startPage >= 0 || endPage >= 0 {
		if startPage < 0 {
			startPage = 0
		}
		if endPage < 0 {
			endPage = info.PageCount - 1
		}
		logger.Info().Int("start", startPage+1).Int("end", endPage+1).Msg("extracting page range")
		outputs, err = extractor.ExtractPageRange(inputPath, startPage, endPage)
	} else {
		outputs, err = extractor.ExtractFile(inputPath)
	}
	_ = bar.Finish()
	if err != nil {
		return errors.Wrap(err, "failed to extract images")
	}

	dir, err := sink.NewDirectory(outputDir)
	if err != nil {
		return err
	}

	if manifestPath := cmd.String("manifest"); manifestPath != "" {
		manifest, err := sink.OpenManifest(manifestPath, filepath.Base(inputPath))
		if err != nil {
			return err
		}
		defer manifest.Close()
		dir.WithManifest(manifest)
	}

	paths, err := dir.WriteAll(outputs)
	if err != nil {
		return errors.Wrap(err, "failed to write images")
	}

	logger.Info().Int("images", len(paths)).Str("output", outputDir).Msg("images written")
	return nil
}
