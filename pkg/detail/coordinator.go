// Package detail loads the related resources of a catalog item concurrently
// and merges them into a single Bundle.
//
// A Session emits an initial snapshot straight away (primary item populated,
// every sub-fetch pending) followed by one snapshot per finished sub-fetch.
// The last snapshot has Settled set, after which the updates channel closes.
//
// Sub-fetch failures never fail the session: a failed creator fetch leaves
// Creator nil and records CreatorError; a failed variant fetch is dropped
// from Variants and recorded on its SubFetch.
package detail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	subFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_subfetches_total",
		Help: "Detail sub-fetches by kind and result",
	}, []string{"kind", "result"})

	settleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_detail_settle_seconds",
		Help:    "Time from session start until every sub-fetch finished",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// ErrSessionClosed is the Bundle.Err of a session closed before settling.
var ErrSessionClosed = errors.New("detail session closed")

// Fetcher is the part of the catalog client the coordinator needs.
type Fetcher interface {
	FetchCreator(ctx context.Context, resourceURI string) (*catalog.Creator, error)
	FetchVariants(ctx context.Context, resourceURI string) ([]catalog.Item, error)
	FetchComic(ctx context.Context, id int) (*catalog.Item, error)
}

// Config holds coordinator configuration.
type Config struct {
	// MaxConcurrency caps parallel sub-fetches per session (0 = unlimited)
	MaxConcurrency int

	// Timeout per sub-fetch (0 = none beyond the session context)
	Timeout time.Duration
}

// DefaultConfig returns the default configuration: every sub-fetch starts at once.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 0,
		Timeout:        15 * time.Second,
	}
}

// Coordinator starts detail sessions.
type Coordinator struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(fetcher Fetcher, config Config) *Coordinator {
	if fetcher == nil {
		panic("detail fetcher cannot be nil")
	}
	if config.MaxConcurrency < 0 {
		config.MaxConcurrency = 0
	}
	return &Coordinator{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentDetail),
	}
}

// Load starts fetching the related resources of item.
func (c *Coordinator) Load(ctx context.Context, item catalog.Item) *Session {
	jobs := plan(item)
	s := c.newSession(ctx, len(jobs)+1)
	go func() {
		defer s.finish()
		s.fanOut(item, jobs)
	}()
	return s
}

// LoadByID fetches the primary item first, then its related resources.
// When the primary fetch fails a single settled Bundle with Err is emitted.
func (c *Coordinator) LoadByID(ctx context.Context, id int) *Session {
	s := c.newSession(ctx, 1)
	go func() {
		defer s.finish()

		item, err := c.fetcher.FetchComic(s.ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int("id", id).Msg("Primary item fetch failed")
			b := Bundle{Primary: catalog.Item{ID: id}, Settled: true, Err: err}
			if s.ctx.Err() != nil {
				b.Settled = false
				b.Err = ErrSessionClosed
			}
			s.settle(b)
			s.deliver([]Bundle{b})
			return
		}

		s.fanOut(*item, plan(*item))
	}()
	return s
}

type job struct {
	index int
	kind  Kind
	uri   string
}

type result struct {
	job      job
	creator  *catalog.Creator
	variants []catalog.Item
	err      error
}

// plan lists the sub-fetches of item: the creator first, then variants in
// server order.
func plan(item catalog.Item) []job {
	var jobs []job
	if uri := item.CreatorsCollectionURI(); uri != "" {
		jobs = append(jobs, job{kind: KindCreator, uri: uri})
	}
	for _, uri := range item.RelatedResourceURIs() {
		jobs = append(jobs, job{kind: KindVariant, uri: uri})
	}
	for i := range jobs {
		jobs[i].index = i
	}
	return jobs
}

func (c *Coordinator) newSession(parent context.Context, buffer int) *Session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &Session{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		coord:   c,
		updates: make(chan Bundle, buffer),
		settled: make(chan struct{}),
		logger:  c.logger.With().Str("session_id", id).Logger(),
		started: time.Now(),
	}
}

// Session is one in-flight detail load.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	coord   *Coordinator
	updates chan Bundle
	settled chan struct{}
	final   Bundle
	logger  zerolog.Logger
	started time.Time
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Updates returns the snapshot stream. The channel is closed after the
// settled snapshot, or after Close. Consumers that stop reading before the
// channel closes must call Close.
func (s *Session) Updates() <-chan Bundle {
	return s.updates
}

// Wait blocks until the session settles or is closed and returns the final
// Bundle.
func (s *Session) Wait() Bundle {
	<-s.settled
	return s.final.clone()
}

// Close abandons outstanding sub-fetches. Results arriving afterwards are
// discarded. Close is safe to call more than once.
func (s *Session) Close() {
	s.cancel()
}

// fanOut runs on the aggregator goroutine. It owns the bundle; sub-fetch
// goroutines only report results.
func (s *Session) fanOut(item catalog.Item, jobs []job) {
	bundle := Bundle{
		Primary: item,
		Fetches: make([]SubFetch, len(jobs)),
	}
	for i, j := range jobs {
		bundle.Fetches[i] = SubFetch{Kind: j.kind, URI: j.uri, State: StatePending}
	}

	s.logger.Debug().
		Int("id", item.ID).
		Int("subfetches", len(jobs)).
		Msg("Starting detail fan-out")

	if len(jobs) == 0 {
		bundle.Settled = true
		s.settle(bundle)
		s.deliver([]Bundle{bundle.clone()})
		return
	}
	pending := []Bundle{bundle.clone()}

	results := make(chan result, len(jobs))
	go s.launch(jobs, results)

	remaining := len(jobs)
	for remaining > 0 {
		var (
			out  chan Bundle
			next Bundle
		)
		if len(pending) > 0 {
			out = s.updates
			next = pending[0]
		}

		select {
		case out <- next:
			pending = pending[1:]

		case r := <-results:
			if s.ctx.Err() != nil {
				// closed while this result was in flight
				continue
			}
			remaining--
			s.apply(&bundle, r)
			if remaining == 0 {
				bundle.Settled = true
				s.settle(bundle)
			}
			pending = append(pending, bundle.clone())

		case <-s.ctx.Done():
			s.logger.Debug().Int("outstanding", remaining).Msg("Session closed before settling")
			bundle.Err = ErrSessionClosed
			s.settle(bundle)
			return
		}
	}

	s.deliver(pending)
}

// launch starts every sub-fetch, respecting MaxConcurrency.
func (s *Session) launch(jobs []job, results chan<- result) {
	var g errgroup.Group
	if s.coord.config.MaxConcurrency > 0 {
		g.SetLimit(s.coord.config.MaxConcurrency)
	}

	for _, j := range jobs {
		g.Go(func() error {
			results <- s.fetch(j)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Session) fetch(j job) result {
	ctx := s.ctx
	if s.coord.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.coord.config.Timeout)
		defer cancel()
	}

	r := result{job: j}
	if err := ctx.Err(); err != nil {
		r.err = err
		return r
	}

	switch j.kind {
	case KindCreator:
		r.creator, r.err = s.coord.fetcher.FetchCreator(ctx, j.uri)
	case KindVariant:
		r.variants, r.err = s.coord.fetcher.FetchVariants(ctx, j.uri)
	default:
		r.err = fmt.Errorf("unknown sub-fetch kind %q", j.kind)
	}
	return r
}

// apply merges one result into the bundle.
func (s *Session) apply(b *Bundle, r result) {
	f := &b.Fetches[r.job.index]

	if r.err != nil {
		f.State = StateFailed
		f.Error = r.err.Error()
		subFetchesTotal.WithLabelValues(string(r.job.kind), "failed").Inc()

		if r.job.kind == KindCreator {
			b.CreatorError = f.Error
		}
		s.logger.Warn().
			Err(r.err).
			Str("kind", string(r.job.kind)).
			Str("uri", r.job.uri).
			Msg("Sub-fetch failed")
		return
	}

	f.State = StateSucceeded
	subFetchesTotal.WithLabelValues(string(r.job.kind), "succeeded").Inc()

	switch r.job.kind {
	case KindCreator:
		b.Creator = r.creator
	case KindVariant:
		b.Variants = append(b.Variants, r.variants...)
	}
}

// deliver sends the remaining snapshots unless the session is closed.
func (s *Session) deliver(pending []Bundle) {
	for _, b := range pending {
		select {
		case s.updates <- b:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) settle(b Bundle) {
	s.final = b.clone()
	if b.Settled {
		settleDuration.Observe(time.Since(s.started).Seconds())
		s.logger.Debug().
			Int("variants", len(b.Variants)).
			Int("failed", len(b.Failed())).
			Dur("duration", time.Since(s.started)).
			Msg("Detail session settled")
	}
	close(s.settled)
}

func (s *Session) finish() {
	close(s.updates)
	s.cancel()
}
