package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/extradar/pkg/alert"
	"github.com/elonfeng/extradar/pkg/opportunity"
)

type fakeBoard struct {
	mu    sync.Mutex
	calls []opportunity.OpportunityQuery
	view  *opportunity.OpportunityView
	err   error
}

func (f *fakeBoard) Opportunities(ctx context.Context, c opportunity.Criteria, q opportunity.OpportunityQuery) (*opportunity.OpportunityView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	return f.view, f.err
}

func (f *fakeBoard) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu   sync.Mutex
	sent []*alert.Notification
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Send(ctx context.Context, n *alert.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func board() *fakeBoard {
	return &fakeBoard{view: &opportunity.OpportunityView{
		Bubbles: []opportunity.Candidate{
			{ExtensionID: 1, Name: "a", Score: 70},
			{ExtensionID: 2, Name: "b", Score: 20},
		},
	}}
}

func TestSendDigest(t *testing.T) {
	b := board()
	rec := &recorder{}
	s := New(b, alert.NewManager([]alert.Notifier{rec}), opportunity.DefaultCriteria(), time.Hour, 5, 50, nil)

	n, err := s.SendDigest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Len(t, n.Entries, 1)
	assert.Equal(t, []opportunity.OpportunityQuery{{Limit: 5}}, b.calls)
	assert.Len(t, rec.sent, 1)
}

func TestSendDigestWithoutNotifiers(t *testing.T) {
	b := board()
	s := New(b, alert.NewManager(nil), opportunity.DefaultCriteria(), 0, 0, 0, nil)

	n, err := s.SendDigest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Zero(t, b.callCount(), "no leaderboard work without destinations")
}

func TestSendDigestBelowThreshold(t *testing.T) {
	rec := &recorder{}
	s := New(board(), alert.NewManager([]alert.Notifier{rec}), opportunity.DefaultCriteria(), time.Hour, 5, 95, nil)

	n, err := s.SendDigest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Empty(t, rec.sent)
}

func TestSendDigestBoardError(t *testing.T) {
	b := &fakeBoard{err: errors.New("store offline")}
	s := New(b, alert.NewManager([]alert.Notifier{&recorder{}}), opportunity.DefaultCriteria(), time.Hour, 5, 0, nil)

	_, err := s.SendDigest(context.Background())
	assert.EqualError(t, err, "store offline")
}

func TestRunStopsOnCancel(t *testing.T) {
	b := board()
	s := New(b, alert.NewManager([]alert.Notifier{&recorder{}}), opportunity.DefaultCriteria(), time.Hour, 5, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return b.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
