// Package sink persists formatted result documents.
package sink

import "context"

// Sink writes one run's formatted results.
type Sink interface {
	// Write persists the document and returns its destination.
	Write(ctx context.Context, document any) (string, error)
}
