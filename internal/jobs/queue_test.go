package jobs

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testQueue(t *testing.T, opts Options) (*Queue, *clock) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "jobs.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	q := New(db, opts)
	c := &clock{t: time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)}
	q.now = c.now
	require.NoError(t, q.EnsureTable(context.Background()))
	return q, c
}

func TestEnqueueClaimAck(t *testing.T) {
	q, _ := testQueue(t, Options{})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: "doc-1", TenantID: "acme"})
	require.NoError(t, err)

	job, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, Descriptor{Kind: KindOCR, DocumentID: "doc-1", TenantID: "acme"}, job.Descriptor)
	assert.Equal(t, 1, job.Attempts)

	again, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, again, "claimed job must stay hidden")

	require.NoError(t, q.Ack(ctx, job.ID))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	q, c := testQueue(t, Options{Visibility: time.Minute})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: "doc-1"})
	require.NoError(t, err)

	first, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	c.advance(59 * time.Second)
	none, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	c.advance(2 * time.Second)
	second, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempts)
}

func TestNackDelay(t *testing.T) {
	q, c := testQueue(t, Options{})
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: "doc-1"})

	job, _ := q.Claim(ctx)
	require.NoError(t, q.Nack(ctx, job.ID, 10*time.Second))

	none, _ := q.Claim(ctx)
	assert.Nil(t, none)

	c.advance(10 * time.Second)
	again, _ := q.Claim(ctx)
	require.NotNil(t, again)
}

func TestClaimOrder(t *testing.T) {
	q, c := testQueue(t, Options{})
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: id})
		require.NoError(t, err)
		c.advance(time.Millisecond)
	}
	var order []string
	for {
		job, err := q.Claim(ctx)
		require.NoError(t, err)
		if job == nil {
			break
		}
		order = append(order, job.Descriptor.DocumentID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDrain(t *testing.T) {
	q, _ := testQueue(t, Options{})
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: "ok"})
	_, _ = q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: "fails"})

	var seen []string
	q.Drain(ctx, func(_ context.Context, job *Job) error {
		seen = append(seen, job.Descriptor.DocumentID)
		if job.Descriptor.DocumentID == "fails" {
			return errors.New("store unavailable")
		}
		return nil
	})

	assert.ElementsMatch(t, []string{"ok", "fails"}, seen)
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed job must remain queued")
}

func TestMaxAttemptsDiscards(t *testing.T) {
	q, c := testQueue(t, Options{MaxAttempts: 2, PollInterval: time.Second})
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: "poison"})

	calls := 0
	failing := func(context.Context, *Job) error {
		calls++
		return errors.New("boom")
	}
	for i := 0; i < 3; i++ {
		q.Drain(ctx, failing)
		c.advance(time.Second)
	}

	assert.Equal(t, 2, calls)
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	q, _ := testQueue(t, Options{PollInterval: 10 * time.Millisecond})
	q.now = time.Now
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = q.Enqueue(ctx, Descriptor{Kind: KindOCR, DocumentID: "doc-1"})

	done := make(chan struct{})
	handled := make(chan string, 1)
	go func() {
		defer close(done)
		_ = q.Run(ctx, func(_ context.Context, job *Job) error {
			handled <- job.Descriptor.DocumentID
			return nil
		})
	}()

	select {
	case id := <-handled:
		assert.Equal(t, "doc-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job not handled")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
