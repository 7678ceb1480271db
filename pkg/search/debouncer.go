// Package search debounces free-text query input.
//
// Push records the latest raw input. Once no new input has arrived for the
// configured delay, the latest value is handed to the sink, unless it equals
// the value handed over last time.
package search

import (
	"sync"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var emissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_search_emissions_total",
	Help: "Debounced search values by outcome",
}, []string{"result"}) // "emitted", "suppressed"

// DefaultDelay is the quiet period before a query is emitted.
const DefaultDelay = 300 * time.Millisecond

// Sink receives debounced query values, typically Collection.ApplyQuery.
type Sink func(query string)

// Config holds debouncer configuration.
type Config struct {
	Delay time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Delay: DefaultDelay}
}

// Debouncer coalesces bursts of input into single sink calls.
type Debouncer struct {
	sink   Sink
	delay  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	latest  string
	stopped bool

	// emitMu serializes sink calls and guards last/emitted
	emitMu  sync.Mutex
	last    string
	emitted bool
}

// New creates a debouncer that feeds sink.
func New(sink Sink, config Config) *Debouncer {
	if sink == nil {
		panic("search sink cannot be nil")
	}
	if config.Delay <= 0 {
		config.Delay = DefaultDelay
	}
	return &Debouncer{
		sink:   sink,
		delay:  config.Delay,
		logger: logging.NewLogger(logging.ComponentSearch),
	}
}

// Push records raw input and restarts the quiet period.
func (d *Debouncer) Push(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.latest = raw
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(seq)
	})
}

// Stop cancels any pending emission. Later pushes are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || d.stopped {
		// superseded by a later push or stopped
		d.mu.Unlock()
		return
	}
	value := d.latest
	d.timer = nil
	d.mu.Unlock()

	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	if d.emitted && value == d.last {
		emissionsTotal.WithLabelValues("suppressed").Inc()
		d.logger.Debug().Str("query", value).Msg("Suppressed unchanged query")
		return
	}
	d.last = value
	d.emitted = true

	emissionsTotal.WithLabelValues("emitted").Inc()
	d.logger.Debug().Str("query", value).Msg("Emitting query")
	d.sink(value)
}
