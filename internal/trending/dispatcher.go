package trending

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"moviescout/internal/domain"
	"moviescout/internal/metrics"
)

const (
	defaultQueueSize   = 64
	defaultWorkers     = 2
	defaultTaskTimeout = 5 * time.Second
)

// HitRecorder is the write side of the aggregator.
type HitRecorder interface {
	RecordHit(ctx context.Context, term string, movie domain.MovieSummary) (domain.TrendingRecord, error)
}

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	TaskTimeout time.Duration
	Logger      *slog.Logger
}

type hitTask struct {
	term  string
	movie domain.MovieSummary
}

// Dispatcher records trending hits off the request path with a bounded
// queue and a fixed worker pool. Submit never blocks.
type Dispatcher struct {
	recorder    HitRecorder
	queue       chan hitTask
	workers     int
	taskTimeout time.Duration
	logger      *slog.Logger

	mu         sync.RWMutex
	closed     bool
	onRecorded func(domain.TrendingRecord)
}

func NewDispatcher(recorder HitRecorder, cfg DispatcherConfig) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		recorder:    recorder,
		queue:       make(chan hitTask, queueSize),
		workers:     workers,
		taskTimeout: timeout,
		logger:      logger,
	}
}

// OnRecorded registers fn to run after every successfully recorded hit.
func (d *Dispatcher) OnRecorded(fn func(domain.TrendingRecord)) {
	d.mu.Lock()
	d.onRecorded = fn
	d.mu.Unlock()
}

// Submit queues a hit. It returns domain.ErrQueueFull when the queue is at
// capacity and domain.ErrClosed after shutdown; the hit is dropped in both
// cases.
func (d *Dispatcher) Submit(term string, movie domain.MovieSummary) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.TrendingDroppedTotal.Inc()
		return domain.ErrClosed
	}
	select {
	case d.queue <- hitTask{term: term, movie: movie}:
		metrics.TrendingQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		metrics.TrendingDroppedTotal.Inc()
		d.logger.Warn("trending queue full, hit dropped",
			slog.String("term", term),
			slog.Int("capacity", cap(d.queue)),
		)
		return domain.ErrQueueFull
	}
}

// Run processes queued hits until ctx is cancelled, then drains what is
// left and returns. It must be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for task := range d.queue {
				metrics.TrendingQueueDepth.Set(float64(len(d.queue)))
				d.process(task)
			}
			return nil
		})
	}

	<-ctx.Done()
	d.mu.Lock()
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	return g.Wait()
}

func (d *Dispatcher) process(task hitTask) {
	// Detached from the submitter; queued hits still complete during drain.
	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()

	record, err := d.recorder.RecordHit(ctx, task.term, task.movie)
	if err != nil {
		d.logger.Error("trending hit failed",
			slog.String("term", task.term),
			slog.String("error", err.Error()),
		)
		return
	}

	d.mu.RLock()
	hook := d.onRecorded
	d.mu.RUnlock()
	if hook != nil {
		hook(record)
	}
}
