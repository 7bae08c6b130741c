package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/elonfeng/extradar/pkg/alert"
	"github.com/elonfeng/extradar/pkg/opportunity"
)

// Leaderboard computes the opportunities view. *opportunity.Engine
// satisfies it.
type Leaderboard interface {
	Opportunities(ctx context.Context, criteria opportunity.Criteria, q opportunity.OpportunityQuery) (*opportunity.OpportunityView, error)
}

// Scheduler periodically recomputes the leaderboard from the full catalog
// and broadcasts it as a digest.
type Scheduler struct {
	board    Leaderboard
	alertMgr *alert.Manager
	criteria opportunity.Criteria
	interval time.Duration
	limit    int
	minScore float64
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a new scheduler.
func New(
	board Leaderboard,
	alertMgr *alert.Manager,
	criteria opportunity.Criteria,
	interval time.Duration,
	limit int,
	minScore float64,
	logger *slog.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if limit <= 0 {
		limit = 10
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		board:    board,
		alertMgr: alertMgr,
		criteria: criteria,
		interval: interval,
		limit:    limit,
		minScore: minScore,
		logger:   logger,
		now:      time.Now,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("digest scheduler running", "interval", s.interval, "limit", s.limit)
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("digest scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.SendDigest(ctx); err != nil {
		s.logger.Error("digest failed", "error", err)
	}
}

// SendDigest computes the leaderboard and broadcasts it. It returns the
// notification sent, or nil when there were no notifiers or no qualifying
// rows.
func (s *Scheduler) SendDigest(ctx context.Context) (*alert.Notification, error) {
	if s.alertMgr == nil || !s.alertMgr.HasNotifiers() {
		return nil, nil
	}

	view, err := s.board.Opportunities(ctx, s.criteria, opportunity.OpportunityQuery{Limit: s.limit})
	if err != nil {
		return nil, err
	}

	n := alert.FromOpportunities(view, s.minScore, s.now())
	if n == nil {
		s.logger.Info("digest skipped, nothing above threshold", "min_score", s.minScore)
		return nil, nil
	}
	if err := s.alertMgr.Broadcast(ctx, n); err != nil {
		return n, err
	}
	s.logger.Info("digest sent", "entries", len(n.Entries), "top_score", n.TopScore)
	return n, nil
}
