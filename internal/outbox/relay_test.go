package outbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welfare/internal/outbox"
	outboxstore "welfare/internal/outbox/store"
	"welfare/internal/queue"
	"welfare/pkg/platform/tx"
)

type recordingPublisher struct {
	published []queue.Job
	failAfter int
}

func (p *recordingPublisher) Publish(_ context.Context, job queue.Job) error {
	if p.failAfter >= 0 && len(p.published) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, job)
	return nil
}

func addJobs(t *testing.T, store *outboxstore.InMemory, n int) []queue.Job {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs := make([]queue.Job, 0, n)
	for i := 0; i < n; i++ {
		job, err := queue.NewJob(queue.KindScanScheme, queue.ScanSchemePayload{SchemeID: "s"}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, store.Add(context.Background(), job))
		jobs = append(jobs, job)
	}
	return jobs
}

func newRelay(store outbox.Store, pub queue.Publisher, batch int) *outbox.Relay {
	return outbox.NewRelay(store, pub, tx.NewLocalRunner(),
		outbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		outbox.WithBatchSize(batch),
	)
}

func TestRelay_RunOncePublishesInOrder(t *testing.T) {
	store := outboxstore.NewInMemory()
	jobs := addJobs(t, store, 3)
	pub := &recordingPublisher{failAfter: -1}

	n, err := newRelay(store, pub, 10).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.published, 3)
	for i := range jobs {
		assert.Equal(t, jobs[i].ID, pub.published[i].ID)
	}

	n, err = newRelay(store, pub, 10).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "published entries are not relayed twice")
}

func TestRelay_RespectsBatchSize(t *testing.T) {
	store := outboxstore.NewInMemory()
	addJobs(t, store, 5)
	pub := &recordingPublisher{failAfter: -1}
	relay := newRelay(store, pub, 2)

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.Pending(queue.KindScanScheme), 3)
}

func TestRelay_PublishFailureKeepsRemainderPending(t *testing.T) {
	store := outboxstore.NewInMemory()
	addJobs(t, store, 3)
	pub := &recordingPublisher{failAfter: 1}

	n, err := newRelay(store, pub, 10).RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.Pending(queue.KindScanScheme), 2)

	pub.failAfter = -1
	n, err = newRelay(store, pub, 10).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, store.Pending(queue.KindScanScheme))
}

// stagedStore holds MarkPublished writes until its runner commits them, so a
// unit of work that returns an error leaves nothing marked, like Postgres.
type stagedStore struct {
	*outboxstore.InMemory
	staged [][]string
	at     time.Time
}

func (s *stagedStore) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	s.staged = append(s.staged, append([]string(nil), ids...))
	s.at = at
	return nil
}

func (s *stagedStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.staged = nil
	if err := fn(ctx); err != nil {
		s.staged = nil
		return err
	}
	for _, ids := range s.staged {
		if err := s.InMemory.MarkPublished(ctx, ids, s.at); err != nil {
			return err
		}
	}
	s.staged = nil
	return nil
}

func TestRelay_PublishFailureCommitsMarksForPublishedEntries(t *testing.T) {
	store := &stagedStore{InMemory: outboxstore.NewInMemory()}
	jobs := addJobs(t, store.InMemory, 3)
	pub := &recordingPublisher{failAfter: 1}
	relay := outbox.NewRelay(store, pub, store,
		outbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	n, err := relay.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.Pending(queue.KindScanScheme), 2, "the published entry stays marked")

	pub.failAfter = -1
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	seen := make(map[string]int)
	for _, j := range pub.published {
		seen[j.ID]++
	}
	assert.Len(t, pub.published, 3, "no job is published twice")
	for _, j := range jobs {
		assert.Equal(t, 1, seen[j.ID])
	}
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	store := outboxstore.NewInMemory()
	relay := outbox.NewRelay(store, &recordingPublisher{failAfter: -1}, tx.NewLocalRunner(),
		outbox.WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	addJobs(t, store, 1)
	require.Eventually(t, func() bool {
		return len(store.Pending(queue.KindScanScheme)) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
