// Package source ingests raw process datasets from external storage.
package source

import (
	"context"

	"github.com/curelab/autoclave/internal/model"
)

// Source reads one process run's dataset.
type Source interface {
	// Read loads the dataset and its descriptive metadata.
	Read(ctx context.Context) (*model.RawData, model.Metadata, error)
}
