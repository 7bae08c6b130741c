package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/extradar/pkg/opportunity"
)

// Entry is one ranked opportunity in a digest.
type Entry struct {
	ExtensionID int64   `json:"extension_id"`
	Name        string  `json:"name"`
	URL         string  `json:"url,omitempty"`
	Category    string  `json:"category"`
	Users       int64   `json:"users"`
	Rating      float64 `json:"rating"`
	RatingGap   float64 `json:"rating_gap"`
	Score       float64 `json:"score"`
}

// Notification is the digest sent to alert destinations.
type Notification struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	TopScore    float64   `json:"top_score"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// FromOpportunities builds a digest from the leaderboard, keeping rows that
// score at least minScore. It returns nil when nothing qualifies.
func FromOpportunities(view *opportunity.OpportunityView, minScore float64, now time.Time) *Notification {
	var entries []Entry
	for _, c := range view.Bubbles {
		if c.Score < minScore {
			continue
		}
		entries = append(entries, Entry{
			ExtensionID: c.ExtensionID,
			Name:        c.Name,
			URL:         c.URL,
			Category:    c.CategoryName,
			Users:       c.Users,
			Rating:      c.Rating,
			RatingGap:   c.RatingGap,
			Score:       c.Score,
		})
	}
	if len(entries) == 0 {
		return nil
	}

	top := entries[0].Score
	for _, e := range entries {
		top = max(top, e.Score)
	}
	return &Notification{
		Title:       fmt.Sprintf("%d extension opportunities", len(entries)),
		Body:        fmt.Sprintf("Ranked by %s across %d candidates", view.Sort, view.Total),
		TopScore:    top,
		GeneratedAt: now.UTC(),
		Entries:     entries,
	}
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// topEntries returns at most limit entries.
func topEntries(n *Notification, limit int) []Entry {
	if len(n.Entries) < limit {
		return n.Entries
	}
	return n.Entries[:limit]
}

func post(ctx context.Context, client *http.Client, name, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s webhook: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s webhook status %d", name, resp.StatusCode)
	}
	return nil
}
