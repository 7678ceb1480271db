package pagination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/comics-catalog-client/internal/executor"
	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pages_fetched_total",
		Help: "Collection page fetches by result",
	}, []string{"result"}) // "ok", "empty", "failed", "stale"

	itemsDeduplicatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_items_deduplicated_total",
		Help: "Items dropped from fetched pages because their ID was already listed",
	})
)

// ErrClosed is returned by operations on a closed Collection.
var ErrClosed = errors.New("pagination: collection closed")

// PageFetcher is the interface the catalog client implements for listing pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int) ([]catalog.Item, error)
}

// Config holds collection configuration.
type Config struct {
	// PageSize is the limit sent with every page request
	PageSize int

	// FetchTimeout bounds a single page fetch (0 = none)
	FetchTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:     20,
		FetchTimeout: 30 * time.Second,
	}
}

// State is a snapshot of a Collection.
type State struct {
	// Items holds every loaded item in load order; IDs are unique
	Items []catalog.Item

	// Filtered is Items restricted to the current query
	Filtered []catalog.Item

	// Offset is the sum of the item counts of all successful pages
	Offset   int
	PageSize int
	Query    string

	IsFetching bool
	EndReached bool

	// Err is the failure of the most recent page fetch
	Err error
}

// Collection is a paginated, filterable item list.
type Collection struct {
	fetcher PageFetcher
	config  Config
	loop    *executor.Loop
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// owned by loop
	state       State
	ids         map[int]struct{}
	generation  uint64
	cancelFetch context.CancelFunc
	subscribers map[int]chan State
	nextSubID   int
	waiters     []chan State
}

// New creates an empty collection.
func New(fetcher PageFetcher, config Config) (*Collection, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if config.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be > 0 (got %d)", config.PageSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Collection{
		fetcher:     fetcher,
		config:      config,
		loop:        executor.NewLoop(),
		logger:      logging.NewLogger(logging.ComponentPagination),
		ctx:         ctx,
		cancel:      cancel,
		state:       State{PageSize: config.PageSize},
		ids:         make(map[int]struct{}),
		subscribers: make(map[int]chan State),
	}, nil
}

// FetchNextPage starts loading the next page. It is a no-op while a fetch
// is in flight and reports whether a fetch was started.
func (c *Collection) FetchNextPage() bool {
	started := false
	_ = c.loop.Exec(func() {
		started = c.startFetch()
	})
	return started
}

// ItemAppeared reports that the item with id became visible. When it is the
// last loaded item and the end has not been reached, the next page is
// fetched. It reports whether a fetch was started.
func (c *Collection) ItemAppeared(id int) bool {
	started := false
	_ = c.loop.Exec(func() {
		n := len(c.state.Items)
		if n == 0 || c.state.EndReached || c.state.Items[n-1].ID != id {
			return
		}
		started = c.startFetch()
	})
	return started
}

// Reset clears all items and abandons any in-flight fetch. The query is kept.
func (c *Collection) Reset() {
	_ = c.loop.Exec(func() {
		c.abandonFetch()
		c.state = State{PageSize: c.config.PageSize, Query: c.state.Query}
		c.ids = make(map[int]struct{})
		c.logger.Debug().Uint64("generation", c.generation).Msg("Collection reset")
		c.publish()
		c.release()
	})
}

// ApplyQuery sets the title filter and recomputes the filtered view.
// It never touches the network.
func (c *Collection) ApplyQuery(query string) {
	_ = c.loop.Exec(func() {
		if query == c.state.Query {
			return
		}
		c.state.Query = query
		c.state.Filtered = filter(c.state.Items, query)
		c.publish()
	})
}

// State returns the current snapshot.
func (c *Collection) State() State {
	var s State
	_ = c.loop.Exec(func() {
		s = c.snapshot()
	})
	return s
}

// Subscribe returns a channel that receives the current state immediately
// and then the latest state after every change. Intermediate states are
// dropped when the receiver falls behind. The returned function
// unsubscribes and closes the channel.
func (c *Collection) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	id := 0
	if err := c.loop.Exec(func() {
		id = c.nextSubID
		c.nextSubID++
		c.subscribers[id] = ch
		ch <- c.snapshot()
	}); err != nil {
		close(ch)
		return ch, func() {}
	}

	return ch, func() {
		_ = c.loop.Exec(func() {
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// Await blocks until no fetch is in flight and returns that state.
func (c *Collection) Await(ctx context.Context) (State, error) {
	ch := make(chan State, 1)
	if err := c.loop.Exec(func() {
		if !c.state.IsFetching {
			ch <- c.snapshot()
			return
		}
		c.waiters = append(c.waiters, ch)
	}); err != nil {
		return State{}, ErrClosed
	}

	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// LoadNextPage fetches the next page and waits for it. The returned error
// is the fetch failure, if any.
func (c *Collection) LoadNextPage(ctx context.Context) (State, error) {
	c.FetchNextPage()
	s, err := c.Await(ctx)
	if err != nil {
		return s, err
	}
	return s, s.Err
}

// Close abandons any in-flight fetch, closes all subscriptions and stops
// the owner goroutine.
func (c *Collection) Close() {
	_ = c.loop.Exec(func() {
		c.abandonFetch()
		c.cancel()
		c.release()
		for id, sub := range c.subscribers {
			delete(c.subscribers, id)
			close(sub)
		}
	})
	c.loop.Close()
}

// startFetch runs on the loop.
func (c *Collection) startFetch() bool {
	if c.state.IsFetching {
		return false
	}

	gen := c.generation
	offset, limit := c.state.Offset, c.state.PageSize

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.config.FetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.config.FetchTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}
	c.cancelFetch = cancel

	c.state.IsFetching = true
	c.state.Err = nil
	c.publish()

	c.logger.Debug().
		Int("offset", offset).
		Int("limit", limit).
		Msg("Fetching page")

	go func() {
		items, err := c.fetcher.FetchPage(ctx, offset, limit)
		_ = c.loop.Post(func() {
			c.complete(gen, offset, items, err)
		})
	}()
	return true
}

// complete runs on the loop.
func (c *Collection) complete(gen uint64, offset int, items []catalog.Item, err error) {
	if gen != c.generation {
		pagesFetchedTotal.WithLabelValues("stale").Inc()
		c.logger.Debug().Int("offset", offset).Msg("Discarding page from before reset")
		return
	}

	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.state.IsFetching = false

	switch {
	case err != nil:
		pagesFetchedTotal.WithLabelValues("failed").Inc()
		c.state.Err = err
		c.logger.Warn().
			Err(err).
			Int("offset", offset).
			Msg("Page fetch failed")

	case len(items) == 0:
		pagesFetchedTotal.WithLabelValues("empty").Inc()
		c.state.EndReached = true
		c.logger.Info().
			Int("offset", offset).
			Int("items", len(c.state.Items)).
			Msg("End of catalog reached")

	default:
		pagesFetchedTotal.WithLabelValues("ok").Inc()
		added := c.merge(items)
		c.state.Offset += len(items)
		c.state.Filtered = filter(c.state.Items, c.state.Query)
		c.logger.Info().
			Int("offset", offset).
			Int("received", len(items)).
			Int("added", added).
			Int("total", len(c.state.Items)).
			Msg("Page loaded")
	}

	c.publish()
	c.release()
}

// merge appends items in order, skipping IDs already present.
func (c *Collection) merge(items []catalog.Item) int {
	added := 0
	for _, item := range items {
		if _, dup := c.ids[item.ID]; dup {
			itemsDeduplicatedTotal.Inc()
			continue
		}
		c.ids[item.ID] = struct{}{}
		c.state.Items = append(c.state.Items, item)
		added++
	}
	return added
}

// abandonFetch runs on the loop. Completions of the abandoned fetch carry
// an outdated generation and are dropped.
func (c *Collection) abandonFetch() {
	c.generation++
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.state.IsFetching = false
}

// snapshot runs on the loop. Items is append-only, so capping the slices
// is enough to keep later appends invisible to the receiver.
func (c *Collection) snapshot() State {
	s := c.state
	s.Items = c.state.Items[:len(c.state.Items):len(c.state.Items)]
	s.Filtered = c.state.Filtered[:len(c.state.Filtered):len(c.state.Filtered)]
	if s.Query == "" {
		s.Filtered = s.Items
	}
	return s
}

// publish runs on the loop and never blocks.
func (c *Collection) publish() {
	if len(c.subscribers) == 0 {
		return
	}
	s := c.snapshot()
	for _, sub := range c.subscribers {
		select {
		case <-sub:
		default:
		}
		sub <- s
	}
}

// release runs on the loop.
func (c *Collection) release() {
	if len(c.waiters) == 0 {
		return
	}
	s := c.snapshot()
	for _, w := range c.waiters {
		w <- s
	}
	c.waiters = nil
}

// filter returns the items whose title contains query, ignoring case.
func filter(items []catalog.Item, query string) []catalog.Item {
	if query == "" {
		return items
	}
	needle := strings.ToLower(query)
	out := make([]catalog.Item, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), needle) {
			out = append(out, item)
		}
	}
	return out
}
