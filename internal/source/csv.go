package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/curelab/autoclave/internal/model"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// timestampLayouts are the formats the CSV reader accepts for non-numeric
// timestamp cells. Values are normalized to unix seconds.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// CSVSource reads a delimited sensor log. The first row names the columns;
// one column carries the timestamp axis.
type CSVSource struct {
	Path            string
	TimestampColumn string
}

// NewCSVSource creates a CSV source for the given file. The timestamp column
// defaults to "timestamp".
func NewCSVSource(path, timestampColumn string) *CSVSource {
	if timestampColumn == "" {
		timestampColumn = "timestamp"
	}
	return &CSVSource{Path: path, TimestampColumn: timestampColumn}
}

// Read parses the file into RawData and validates its invariants.
func (s *CSVSource) Read(ctx context.Context) (*model.RawData, model.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Metadata{}, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, model.Metadata{}, autoclaveerrors.NewConfigError(s.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, model.Metadata{}, autoclaveerrors.NewConfigError(s.Path, err)
	}
	if len(rows) < 2 {
		return nil, model.Metadata{}, autoclaveerrors.NewConfigError(s.Path, fmt.Errorf("dataset needs a header and at least one sample row"))
	}

	header := rows[0]
	tsIndex := -1
	for i, name := range header {
		if name == s.TimestampColumn {
			tsIndex = i
			break
		}
	}
	if tsIndex < 0 {
		return nil, model.Metadata{}, autoclaveerrors.NewConfigError(s.Path, fmt.Errorf("timestamp column %q not in header", s.TimestampColumn))
	}

	raw := &model.RawData{
		Channels:        make(map[string][]float64, len(header)),
		TimestampColumn: s.TimestampColumn,
	}
	for _, name := range header {
		raw.Channels[name] = make([]float64, 0, len(rows)-1)
	}

	for rowIdx, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, model.Metadata{}, autoclaveerrors.NewConfigError(s.Path, fmt.Errorf("row %d has %d cells, header has %d", rowIdx+2, len(row), len(header)))
		}
		for colIdx, cell := range row {
			var value float64
			if colIdx == tsIndex {
				value, err = parseTimestamp(cell)
			} else {
				value, err = strconv.ParseFloat(cell, 64)
			}
			if err != nil {
				return nil, model.Metadata{}, autoclaveerrors.NewConfigError(s.Path, fmt.Errorf("row %d column %q: %w", rowIdx+2, header[colIdx], err))
			}
			raw.Channels[header[colIdx]] = append(raw.Channels[header[colIdx]], value)
		}
	}

	if err := raw.Validate(); err != nil {
		return nil, model.Metadata{}, autoclaveerrors.NewConfigError(s.Path, err)
	}

	meta := model.Metadata{
		RowCount:        raw.Len(),
		ColumnCount:     len(header),
		Columns:         raw.ColumnNames(),
		TimestampColumn: s.TimestampColumn,
		Source:          s.Path,
	}
	return raw, meta, nil
}

// parseTimestamp accepts unix seconds or a known datetime layout.
func parseTimestamp(cell string) (float64, error) {
	if value, err := strconv.ParseFloat(cell, 64); err == nil {
		return value, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return float64(t.Unix()), nil
		}
	}
	return 0, fmt.Errorf("unparseable timestamp %q", cell)
}
