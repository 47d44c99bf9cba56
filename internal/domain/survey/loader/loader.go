// Package loader reads uploaded workbooks and delimited-text exports into
// raw tables, one table per non-empty sheet.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
)

var (
	ErrNoTables          = errors.New("no sheets could be loaded from any file")
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// SourceSheetColumn is the column added when Config.TagSourceSheet is set.
const SourceSheetColumn = "Source_Sheet"

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Config controls how uploads are decoded.
type Config struct {
	// MaxConcurrency bounds how many files are decoded at once.
	MaxConcurrency int
	// TagSourceSheet appends a Source_Sheet column naming the originating sheet.
	TagSourceSheet bool
	// MaxRowsPerSheet truncates very large sheets; 0 means unlimited.
	MaxRowsPerSheet int
}

// DefaultConfig returns the loader defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrency: 4}
}

// Upload is one file received from the user.
type Upload struct {
	Filename string
	Data     []byte
}

// Result holds every table read from a batch of uploads plus the warnings
// raised for sheets or files that had to be skipped.
type Result struct {
	Tables   []*dataset.Table
	Warnings []dataset.Warning
}

// Loader decodes uploads into tables.
type Loader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Loader.
func New(cfg Config, logger *slog.Logger) *Loader {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Loader{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "loader")),
	}
}

type fileResult struct {
	tables   []*dataset.Table
	warnings []dataset.Warning
}

// Load reads every upload. Files decode in parallel but the returned tables
// keep upload order, then sheet order. Unreadable files and sheets become
// warnings; ErrNoTables is returned, together with the warnings, only when
// nothing at all could be read.
func (l *Loader) Load(ctx context.Context, uploads []Upload) (*Result, error) {
	perFile := make([]fileResult, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.MaxConcurrency)
	for i, up := range uploads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i] = l.loadFile(up)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load uploads: %w", err)
	}

	res := &Result{}
	for _, fr := range perFile {
		res.Tables = append(res.Tables, fr.tables...)
		res.Warnings = append(res.Warnings, fr.warnings...)
	}

	l.logger.Info("uploads loaded",
		slog.Int("files", len(uploads)),
		slog.Int("tables", len(res.Tables)),
		slog.Int("warnings", len(res.Warnings)),
	)

	if len(res.Tables) == 0 {
		return res, ErrNoTables
	}
	return res, nil
}

func (l *Loader) loadFile(up Upload) fileResult {
	if len(bytes.TrimSpace(up.Data)) == 0 {
		return fileResult{warnings: []dataset.Warning{
			dataset.Warnf(dataset.StageLoad, up.Filename, "%v", ErrEmptyFile),
		}}
	}

	var (
		sheets   []rawSheet
		warnings []dataset.Warning
		err      error
	)
	switch format := detectFormat(up); format {
	case formatWorkbook:
		sheets, warnings, err = readWorkbook(up.Data)
	case formatLegacyWorkbook:
		sheets, err = readLegacyWorkbook(up.Data)
	case formatDelimited:
		var sheet rawSheet
		sheet, err = readDelimited(up.Data)
		sheets = []rawSheet{sheet}
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(up.Filename))
	}
	for i := range warnings {
		warnings[i].Source = up.Filename
	}
	if err != nil {
		l.logger.Warn("skipping unreadable file",
			slog.String("file", up.Filename),
			slog.Any("error", err),
		)
		return fileResult{warnings: append(warnings, dataset.Warnf(dataset.StageLoad, up.Filename, "%v", err))}
	}

	out := fileResult{warnings: warnings}
	for _, sheet := range sheets {
		table, ok := buildTable(sheet.rows, l.cfg.MaxRowsPerSheet)
		if !ok {
			msg := "no data rows, skipped"
			if sheet.name != "" {
				msg = fmt.Sprintf("sheet %q has no data rows, skipped", sheet.name)
			}
			out.warnings = append(out.warnings, dataset.Warnf(dataset.StageLoad, up.Filename, "%s", msg))
			continue
		}
		table.Source = up.Filename
		table.Sheet = sheet.name
		table.Name = tableName(up.Filename, sheet.name)

		if l.cfg.TagSourceSheet {
			tags := make([]dataset.Value, table.Len())
			for i := range tags {
				tags[i] = dataset.String(sheet.name)
			}
			// lengths always match here
			_ = table.AddColumn(SourceSheetColumn, tags)
		}

		l.logger.Debug("sheet loaded",
			slog.String("file", up.Filename),
			slog.String("sheet", sheet.name),
			slog.Int("rows", table.Len()),
			slog.Int("columns", table.Width()),
		)
		out.tables = append(out.tables, table)
	}
	return out
}

type fileFormat int

const (
	formatUnknown fileFormat = iota
	formatWorkbook
	formatLegacyWorkbook
	formatDelimited
)

func detectFormat(up Upload) fileFormat {
	switch strings.ToLower(filepath.Ext(up.Filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return formatWorkbook
	case ".csv", ".tsv", ".txt":
		return formatDelimited
	case ".xls", ".xlt":
		return formatLegacyWorkbook
	}
	if bytes.HasPrefix(up.Data, zipMagic) {
		return formatWorkbook
	}
	if bytes.HasPrefix(up.Data, oleMagic) {
		return formatLegacyWorkbook
	}
	return formatUnknown
}

func tableName(filename, sheet string) string {
	if sheet == "" {
		return filename
	}
	return filename + ":" + sheet
}
