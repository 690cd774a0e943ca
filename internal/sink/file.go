package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// FileSink writes the result document as JSON to a templated path. The path
// template may reference {process_id}, {series_id}, and {calculation_date}.
type FileSink struct {
	PathTemplate string
	Fields       map[string]string
}

// NewFileSink creates a file sink. Fields supply the template substitutions.
func NewFileSink(pathTemplate string, fields map[string]string) *FileSink {
	return &FileSink{PathTemplate: pathTemplate, Fields: fields}
}

// Write marshals the document and writes it atomically via a temp file and
// rename in the destination directory.
func (s *FileSink) Write(ctx context.Context, document any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := s.PathTemplate
	for key, value := range s.Fields {
		path = strings.ReplaceAll(path, "{"+key+"}", value)
	}
	if strings.Contains(path, "{") {
		return "", autoclaveerrors.NewConfigError(s.PathTemplate, fmt.Errorf("unresolved placeholder in output path %q", path))
	}

	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", autoclaveerrors.NewConfigError(path, err)
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", autoclaveerrors.NewConfigError(path, err)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return "", autoclaveerrors.NewConfigError(path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", autoclaveerrors.NewConfigError(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", autoclaveerrors.NewConfigError(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", autoclaveerrors.NewConfigError(path, err)
	}

	return path, nil
}
