package library

import (
	"context"
	"fmt"
	"time"
)

// History records scene searches and their outcomes.
type History struct {
	repo Repository
}

func NewHistory(repo Repository) *History {
	return &History{repo: repo}
}

// Begin stores a pending search for videoID.
func (h *History) Begin(ctx context.Context, videoID, description string) (*SearchRecord, error) {
	now := time.Now()
	rec := &SearchRecord{
		ID:          NewID(),
		VideoID:     videoID,
		Description: description,
		Status:      SearchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.CreateSearch(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record search: %w", err)
	}
	return rec, nil
}

// Finish stores the final state of rec.
func (h *History) Finish(ctx context.Context, rec *SearchRecord) error {
	rec.UpdatedAt = time.Now()
	if err := h.repo.UpdateSearch(ctx, rec); err != nil {
		return fmt.Errorf("failed to update search %s: %w", rec.ID, err)
	}
	return nil
}

func (h *History) List(ctx context.Context, videoID string, limit int) ([]*SearchRecord, error) {
	return h.repo.ListSearches(ctx, videoID, limit)
}

// LastFound returns the most recent search that produced a usable position,
// or nil when there is none.
func (h *History) LastFound(ctx context.Context) (*SearchRecord, error) {
	return h.repo.LatestFoundSearch(ctx)
}

func (h *History) Get(ctx context.Context, id string) (*SearchRecord, error) {
	return h.repo.GetSearch(ctx, id)
}
