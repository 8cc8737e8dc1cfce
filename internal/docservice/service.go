// Package docservice is the document lifecycle manager. It coordinates the
// object store, the relational store, the job queue and the analyzer:
// deduplicated uploads, version chains, polymorphic links, classification
// and the OCR job consumer.
package docservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/paperasse/internal/analyzer"
	"github.com/starford/paperasse/internal/docstore"
	"github.com/starford/paperasse/internal/jobs"
	"github.com/starford/paperasse/internal/metrics"
	"github.com/starford/paperasse/internal/ocr"
	"github.com/starford/paperasse/internal/storage"
)

// Enqueuer accepts job descriptors for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, d jobs.Descriptor) (string, error)
}

// Publisher receives document lifecycle events.
type Publisher interface {
	PublishDocumentEvent(kind, tenantID, documentID string)
}

type nopPublisher struct{}

func (nopPublisher) PublishDocumentEvent(string, string, string) {}

// Service coordinates storage, persistence, queueing and analysis.
type Service struct {
	store      docstore.Store
	objects    storage.ObjectStore
	queue      Enqueuer
	recognizer ocr.Recognizer
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	analyzer   *analyzer.Analyzer
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the receiver of lifecycle events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecognizer overrides the text recognizer used by OCR jobs.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(s *Service) { s.recognizer = r }
}

// WithClock overrides the time source for timestamps and date checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a document service.
func NewService(store docstore.Store, objects storage.ObjectStore, queue Enqueuer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		objects:    objects,
		queue:      queue,
		recognizer: ocr.NewTextLayer(),
		publisher:  nopPublisher{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.analyzer = analyzer.New(analyzer.WithClock(s.now))
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
