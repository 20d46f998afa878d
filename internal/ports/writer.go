package ports

import (
	"context"

	"github.com/ghalamif/raptorlink/internal/domain"
)

// PointWriter is the storage backend write contract. A call either persists
// the whole batch or returns an error.
type PointWriter interface {
	WritePoints(ctx context.Context, points []domain.Point) error
	Name() string
}
