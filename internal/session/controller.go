package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"moviescout/internal/catalog"
	"moviescout/internal/debounce"
	"moviescout/internal/domain"
	"moviescout/internal/metrics"
)

// Fetcher runs one movie query.
type Fetcher interface {
	FetchMovies(ctx context.Context, term string) domain.QueryResult
}

// State is the observable state of one live search session.
type State struct {
	Term    string
	Result  domain.QueryResult
	Loading bool
	// Seq identifies the latest query issued; results of older queries are
	// discarded.
	Seq uint64
}

// Listener receives every state transition. It is called from several
// goroutines, one call at a time, and must not block.
type Listener func(State)

type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Controller drives one search session: raw input is debounced, each settled
// term triggers exactly one fetch, and only the newest fetch may update the
// state.
type Controller struct {
	ctx      context.Context
	cancel   context.CancelFunc
	fetcher  Fetcher
	listener Listener
	logger   *slog.Logger

	debouncer *debounce.Debouncer[string]

	mu       sync.Mutex
	state    State
	started  bool
	closed   bool
	inflight context.CancelFunc

	publishMu sync.Mutex
}

func NewController(parent context.Context, fetcher Fetcher, listener Listener, opts Options) *Controller {
	ctx, cancel := context.WithCancel(parent)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		ctx:      ctx,
		cancel:   cancel,
		fetcher:  fetcher,
		listener: listener,
		logger:   logger,
	}
	c.debouncer = debounce.New(opts.Debounce, c.settled)
	metrics.LiveSessions.Inc()
	return c
}

// Start issues the initial query for the empty term (popular movies).
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	c.dispatch("")
}

// Input feeds one raw keystroke value into the debouncer.
func (c *Controller) Input(raw string) {
	c.debouncer.Push(raw)
}

// Submit runs the pending input now, or re-runs the current term when
// nothing is pending.
func (c *Controller) Submit() {
	if c.debouncer.Flush() {
		return
	}
	c.dispatch(c.State().Term)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops the debouncer and cancels the in-flight fetch. Late results
// are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.mu.Unlock()

	c.debouncer.Stop()
	c.cancel()
	metrics.LiveSessions.Dec()
}

// settled receives debounced values. An unchanged term does not refetch.
func (c *Controller) settled(raw string) {
	term := strings.TrimSpace(raw)
	c.mu.Lock()
	unchanged := c.started && term == c.state.Term
	c.mu.Unlock()
	if unchanged {
		return
	}
	c.dispatch(term)
}

func (c *Controller) dispatch(term string) {
	ctx, seq, ok := c.begin(term)
	if !ok {
		return
	}
	go c.run(ctx, seq, term)
}

// begin records a new query, supersedes any in-flight one and returns its
// sequence number.
func (c *Controller) begin(term string) (context.Context, uint64, bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, 0, false
	}
	c.started = true
	if c.inflight != nil {
		c.inflight()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight = cancel
	c.state.Seq++
	c.state.Term = strings.TrimSpace(term)
	c.state.Loading = true
	seq := c.state.Seq
	c.mu.Unlock()

	c.publish()
	return ctx, seq, true
}

func (c *Controller) run(ctx context.Context, seq uint64, term string) {
	result := domain.FailureResult(catalog.GenericErrorMessage)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("movie fetch panicked",
				slog.String("term", term),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
		c.complete(seq, result)
	}()
	result = c.fetcher.FetchMovies(ctx, term)
}

// complete applies result if seq is still the latest query. It reports
// whether the result was applied.
func (c *Controller) complete(seq uint64, result domain.QueryResult) bool {
	c.mu.Lock()
	if c.closed || seq != c.state.Seq {
		c.mu.Unlock()
		metrics.StaleResultsTotal.Inc()
		return false
	}
	c.state.Result = result
	c.state.Loading = false
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.mu.Unlock()

	c.publish()
	return true
}

// publish sends the current snapshot, so a listener never observes an
// older state after a newer one.
func (c *Controller) publish() {
	if c.listener == nil {
		return
	}
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.listener(c.State())
}
