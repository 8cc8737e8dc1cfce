// Package jobs implements the document job queue: a visibility-timeout queue
// stored in SQLite next to the documents.
//
// A claimed job is hidden for the visibility duration. The consumer acks it
// on success; on failure, or when the consumer dies, the job becomes visible
// again. Delivery is therefore at-least-once and handlers must be idempotent.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// KindOCR asks for text recognition followed by classification.
const KindOCR = "ocr"

// Descriptor is the opaque job payload.
type Descriptor struct {
	Kind       string `json:"kind"`
	DocumentID string `json:"documentId"`
	TenantID   string `json:"tenantId"`
}

// Job is a claimed queue row.
type Job struct {
	ID         string
	Descriptor Descriptor
	Attempts   int
	CreatedAt  time.Time
}

// Options configures queue behaviour.
type Options struct {
	// Queue is the logical queue name; several queues share one table.
	Queue string
	// Visibility is how long a claimed job stays hidden. Default: 5m.
	Visibility time.Duration
	// PollInterval is the delay between claim rounds in Run. Default: 1s.
	PollInterval time.Duration
	// MaxAttempts discards a job after that many deliveries. 0 means unlimited.
	MaxAttempts int
	Logger      *slog.Logger
}

func (o *Options) defaults() {
	if o.Queue == "" {
		o.Queue = "documents"
	}
	if o.Visibility <= 0 {
		o.Visibility = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Queue is the queue handle.
type Queue struct {
	db   *sql.DB
	opts Options
	now  func() time.Time
}

// New creates a queue handle. Call EnsureTable once at startup.
func New(db *sql.DB, opts Options) *Queue {
	opts.defaults()
	return &Queue{db: db, opts: opts, now: time.Now}
}

// EnsureTable creates the job table and its index.
func (q *Queue) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			queue       TEXT NOT NULL DEFAULT '',
			payload     BLOB NOT NULL,
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_visible ON jobs (queue, visible_at);
	`)
	if err != nil {
		return fmt.Errorf("jobs: ensure table: %w", err)
	}
	return nil
}

// Enqueue adds an immediately visible job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, d Descriptor) (string, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("jobs: encode descriptor: %w", err)
	}
	id := uuid.Must(uuid.NewV7()).String()
	now := q.now().UnixMilli()
	if _, err := q.db.ExecContext(ctx,
		`INSERT INTO jobs (id, queue, payload, visible_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, q.opts.Queue, payload, now, now,
	); err != nil {
		return "", fmt.Errorf("jobs: enqueue: %w", err)
	}
	return id, nil
}

// Claim hides the oldest visible job for the visibility duration and
// returns it. It returns nil, nil when nothing is visible.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := q.now()
	row := q.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = ? AND visible_at <= ?
			ORDER BY visible_at, created_at
			LIMIT 1
		)
		RETURNING id, payload, created_at, attempts`,
		now.Add(q.opts.Visibility).UnixMilli(), q.opts.Queue, now.UnixMilli(),
	)

	var (
		j       Job
		payload []byte
		created int64
	)
	err := row.Scan(&j.ID, &payload, &created, &j.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: claim: %w", err)
	}
	if err := json.Unmarshal(payload, &j.Descriptor); err != nil {
		return nil, fmt.Errorf("jobs: decode job %s: %w", j.ID, err)
	}
	j.CreatedAt = time.UnixMilli(created).UTC()
	return &j, nil
}

// Ack deletes a processed job.
func (q *Queue) Ack(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND queue = ?`, id, q.opts.Queue); err != nil {
		return fmt.Errorf("jobs: ack %s: %w", id, err)
	}
	return nil
}

// Nack makes a job visible again after delay.
func (q *Queue) Nack(ctx context.Context, id string, delay time.Duration) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET visible_at = ? WHERE id = ? AND queue = ?`,
		q.now().Add(delay).UnixMilli(), id, q.opts.Queue,
	); err != nil {
		return fmt.Errorf("jobs: nack %s: %w", id, err)
	}
	return nil
}

// Len returns the number of jobs in the queue, visible or not.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE queue = ?`, q.opts.Queue).Scan(&n); err != nil {
		return 0, fmt.Errorf("jobs: len: %w", err)
	}
	return n, nil
}

// Handler processes a claimed job. Returning nil acks it; an error makes it
// visible again after the poll interval.
type Handler func(ctx context.Context, job *Job) error

// Run polls for visible jobs until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handler Handler) error {
	log := q.opts.Logger
	log.Info("jobs: consumer started",
		slog.String("queue", q.opts.Queue),
		slog.Duration("visibility", q.opts.Visibility),
		slog.Duration("poll", q.opts.PollInterval))

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("jobs: consumer stopped", slog.String("queue", q.opts.Queue))
			return nil
		case <-ticker.C:
			q.Drain(ctx, handler)
		}
	}
}

// Drain processes visible jobs until none is left or ctx is cancelled.
func (q *Queue) Drain(ctx context.Context, handler Handler) {
	log := q.opts.Logger
	for ctx.Err() == nil {
		job, err := q.Claim(ctx)
		if err != nil {
			log.Warn("jobs: claim failed", slog.String("queue", q.opts.Queue), slog.String("error", err.Error()))
			return
		}
		if job == nil {
			return
		}

		if q.opts.MaxAttempts > 0 && job.Attempts > q.opts.MaxAttempts {
			log.Error("jobs: job exceeded max attempts, discarding",
				slog.String("job_id", job.ID),
				slog.String("document_id", job.Descriptor.DocumentID),
				slog.Int("attempts", job.Attempts))
			_ = q.Ack(ctx, job.ID)
			continue
		}

		if err := handler(ctx, job); err != nil {
			log.Warn("jobs: handler failed, retrying",
				slog.String("job_id", job.ID),
				slog.String("kind", job.Descriptor.Kind),
				slog.String("document_id", job.Descriptor.DocumentID),
				slog.Int("attempts", job.Attempts),
				slog.String("error", err.Error()))
			_ = q.Nack(context.WithoutCancel(ctx), job.ID, q.opts.PollInterval)
			continue
		}
		_ = q.Ack(context.WithoutCancel(ctx), job.ID)
	}
}
