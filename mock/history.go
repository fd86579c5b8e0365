package mock

import (
	"context"

	"github.com/fwojciec/parley"
)

// Interface compliance check.
var _ parley.HistoryService = (*HistoryService)(nil)

// HistoryService is a test double for parley.HistoryService.
// Set the function fields for the methods you need.
type HistoryService struct {
	HistoryFn      func(ctx context.Context, target, sessionID string, limit int) ([]parley.Message, error)
	ClearHistoryFn func(ctx context.Context, target, sessionID string) error
}

// History delegates to HistoryFn.
func (h *HistoryService) History(ctx context.Context, target, sessionID string, limit int) ([]parley.Message, error) {
	return h.HistoryFn(ctx, target, sessionID, limit)
}

// ClearHistory delegates to ClearHistoryFn.
func (h *HistoryService) ClearHistory(ctx context.Context, target, sessionID string) error {
	return h.ClearHistoryFn(ctx, target, sessionID)
}
