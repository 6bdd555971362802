package output

import (
	"context"

	"github.com/hejijunhao/amber/internal/model"
)

// Output defines the interface for transcript destinations. One record is
// written per user turn, failed turns included.
type Output interface {
	Write(ctx context.Context, rec model.TurnRecord) error
	Close() error
}
