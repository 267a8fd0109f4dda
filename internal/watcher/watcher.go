package watcher

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultRetryDelay = 5 * time.Second

// ChangeEvent represents a simplified MongoDB change stream event.
type ChangeEvent struct {
	OperationType string
	UpdatedFields map[string]interface{}
}

// IsTrendingChange reports whether the event can change the trending order:
// a new or removed term, or a counter bump.
func IsTrendingChange(e ChangeEvent) bool {
	switch e.OperationType {
	case "insert", "replace", "delete":
		return true
	case "update":
		_, ok := e.UpdatedFields["count"]
		return ok
	default:
		return false
	}
}

// NotifyFunc is called with the affected search term. The term is empty for
// deletes.
type NotifyFunc func(ctx context.Context, searchTerm string)

// Watcher follows the trending collection so every instance sees counter
// changes made by the others. Requires a replica set.
type Watcher struct {
	col        *mongo.Collection
	notify     NotifyFunc
	logger     *slog.Logger
	retryDelay time.Duration
}

type Option func(*Watcher)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.retryDelay = d
		}
	}
}

func New(col *mongo.Collection, notify NotifyFunc, opts ...Option) *Watcher {
	w := &Watcher{
		col:        col,
		notify:     notify,
		logger:     slog.Default(),
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the change stream loop. Blocks until ctx is cancelled.
// Reconnects after transient errors.
func (w *Watcher) Run(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	for {
		if err := w.watch(ctx, pipeline, opts); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("trending change stream error, retrying",
				slog.Duration("delay", w.retryDelay),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(w.retryDelay):
			case <-ctx.Done():
				return nil
			}
		}
		// A nil error means the server closed the cursor; reopen immediately.
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (w *Watcher) watch(ctx context.Context, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) error {
	cs, err := w.col.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(ctx)

	for cs.Next(ctx) {
		var raw struct {
			OperationType string `bson:"operationType"`
			UpdateDesc    struct {
				UpdatedFields bson.M `bson:"updatedFields"`
			} `bson:"updateDescription"`
			FullDocument struct {
				SearchTerm string `bson:"searchTerm"`
			} `bson:"fullDocument"`
		}
		if err := cs.Decode(&raw); err != nil {
			w.logger.Warn("trending change stream decode error", slog.String("error", err.Error()))
			continue
		}
		event := ChangeEvent{
			OperationType: raw.OperationType,
			UpdatedFields: raw.UpdateDesc.UpdatedFields,
		}
		if IsTrendingChange(event) {
			w.notify(ctx, raw.FullDocument.SearchTerm)
		}
	}
	return cs.Err()
}
