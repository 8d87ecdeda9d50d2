// Package syncer drives incremental synchronization from the fitness tracker to the event store.
//
// A run walks a window of calendar dates, oldest first, and for each date processes the sleep
// stream before the activity stream: fetch, normalize, drop events that end at or before the
// stream's pre-run watermark, insert the rest. The watermark is committed once, after every date
// succeeded, and only for streams whose latest inserted end moved it forward.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AndreyKarmanov/aw-garmin/internal/dedup"
	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
	"github.com/AndreyKarmanov/aw-garmin/internal/normalize"
	"github.com/AndreyKarmanov/aw-garmin/internal/observability"
	"github.com/AndreyKarmanov/aw-garmin/internal/watermark"
)

const (
	DefaultBucket         = "garmin-health"
	DefaultBucketCategory = "health"
)

// Source is the upstream fitness-data capability.
type Source interface {
	Login(ctx context.Context) error
	FetchSleep(ctx context.Context, date time.Time) (normalize.SleepData, error)
	FetchActivities(ctx context.Context, date time.Time) ([]normalize.AllDayEvent, error)
}

// Sink is the downstream event-store capability. EnsureBucket may return
// domain.ErrBucketExists, which the orchestrator treats as success.
type Sink interface {
	EnsureBucket(ctx context.Context, name, category string) error
	InsertEvent(ctx context.Context, bucket string, event domain.Event) error
}

// RunOptions selects the dates of a run.
type RunOptions struct {
	Date     *time.Time // sync exactly this date when set
	DaysBack int        // otherwise sync DaysBack+1 days ending today
}

// Summary reports what a run did.
type Summary struct {
	RunID             string
	Dates             []time.Time
	Inserted          map[domain.Stream]int
	Skipped           map[domain.Stream]int
	EventsInserted    int
	WatermarkAdvanced bool
	Watermarks        watermark.State
}

// Option configures optional behaviour for the Orchestrator.
type Option func(*Orchestrator)

// WithBucket overrides the destination bucket name and category.
func WithBucket(name, category string) Option {
	return func(o *Orchestrator) {
		o.bucket = name
		o.category = category
	}
}

// WithClock overrides the clock used to determine today's date.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithLogger overrides the logger used to report progress.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator runs sync passes. It is not safe for concurrent runs.
type Orchestrator struct {
	source   Source
	sink     Sink
	store    watermark.Store
	bucket   string
	category string
	now      func() time.Time
	logger   zerolog.Logger
}

// New constructs an Orchestrator.
func New(source Source, sink Sink, store watermark.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:   source,
		sink:     sink,
		store:    store,
		bucket:   DefaultBucket,
		category: DefaultBucketCategory,
		now:      time.Now,
		logger:   xlog.WithComponent("syncer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one sync pass. Any error aborts the run before the watermark is committed.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	started := time.Now()
	summary := Summary{
		RunID:    uuid.NewString(),
		Inserted: make(map[domain.Stream]int, len(domain.Streams)),
		Skipped:  make(map[domain.Stream]int, len(domain.Streams)),
	}
	logger := o.logger.With().Str("run_id", summary.RunID).Logger()
	ctx = logger.WithContext(ctx)

	err := o.run(ctx, logger, opts, &summary)
	observability.RecordRun(started, err)
	if err != nil {
		logger.Error().Err(err).Msg("sync run failed")
	}
	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, logger zerolog.Logger, opts RunOptions, summary *Summary) error {
	phase := PhaseInit
	advance := func(next Phase) {
		logger.Debug().Str("from", phase.String()).Str("to", next.String()).Msg("phase transition")
		phase = next
	}

	dates, err := Window(opts.Date, opts.DaysBack, o.now())
	if err != nil {
		return err
	}
	summary.Dates = dates

	if err := o.source.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	logger.Info().Msg("logged in to upstream")
	advance(PhaseAuthenticated)

	if err := o.sink.EnsureBucket(ctx, o.bucket, o.category); err != nil {
		if !errors.Is(err, domain.ErrBucketExists) {
			return fmt.Errorf("ensure bucket %s: %w", o.bucket, err)
		}
		logger.Info().Str("bucket", o.bucket).Msg("using existing bucket")
	} else {
		logger.Info().Str("bucket", o.bucket).Msg("created bucket")
	}
	advance(PhaseBucketReady)

	pre, err := o.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load watermarks: %w", err)
	}
	summary.Watermarks = pre
	advance(PhaseSyncing)

	latest := make(map[domain.Stream]*time.Time, len(domain.Streams))
	for _, date := range dates {
		for _, stream := range domain.Streams {
			if err := ctx.Err(); err != nil {
				return err
			}

			events, err := o.collect(ctx, stream, date)
			if err != nil {
				return fmt.Errorf("%s %s: %w", stream, date.Format(DateLayout), err)
			}

			kept, maxEnd := dedup.FilterNew(events, pre.Get(stream))
			for _, evt := range kept {
				if err := o.sink.InsertEvent(ctx, o.bucket, evt); err != nil {
					return fmt.Errorf("insert %s event %q at %s: %w", stream, evt.Title, evt.Start.Format(time.RFC3339), err)
				}
			}
			latest[stream] = dedup.Later(latest[stream], maxEnd)

			skipped := len(events) - len(kept)
			summary.Inserted[stream] += len(kept)
			summary.Skipped[stream] += skipped
			summary.EventsInserted += len(kept)
			observability.RecordInserted(string(stream), len(kept))
			observability.RecordSkipped(string(stream), skipped)

			logger.Info().
				Str("stream", string(stream)).
				Str("date", date.Format(DateLayout)).
				Int("inserted", len(kept)).
				Int("skipped", skipped).
				Msgf("synced %d %s events for %s", len(kept), stream, date.Format(DateLayout))
		}
	}

	next, advanced := reconcile(pre, latest)
	if advanced {
		if err := o.store.Save(ctx, next); err != nil {
			return fmt.Errorf("save watermarks: %w", err)
		}
		for _, stream := range domain.Streams {
			observability.RecordWatermark(string(stream), next.Get(stream))
		}
	}
	summary.Watermarks = next
	summary.WatermarkAdvanced = advanced
	advance(PhaseWatermarkReconciled)

	logger.Info().
		Int("events_inserted", summary.EventsInserted).
		Bool("watermark_advanced", advanced).
		Msg("sync complete")
	advance(PhaseDone)
	return nil
}

func (o *Orchestrator) collect(ctx context.Context, stream domain.Stream, date time.Time) ([]domain.Event, error) {
	switch stream {
	case domain.StreamSleep:
		data, err := o.source.FetchSleep(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		events := make([]domain.Event, 0, len(data.SleepLevels))
		for _, level := range data.SleepLevels {
			evt, err := normalize.Sleep(level)
			if err != nil {
				return nil, err
			}
			events = append(events, evt)
		}
		return events, nil
	case domain.StreamActivity:
		records, err := o.source.FetchActivities(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		events := make([]domain.Event, 0, len(records))
		for _, record := range records {
			evt, err := normalize.Activity(record)
			if err != nil {
				return nil, err
			}
			events = append(events, evt)
		}
		return events, nil
	default:
		return nil, fmt.Errorf("unknown stream %q", stream)
	}
}

// reconcile moves each stream's watermark to its latest inserted end when that is strictly later.
// Streams without new events keep their previous value.
func reconcile(pre watermark.State, latest map[domain.Stream]*time.Time) (watermark.State, bool) {
	next := pre
	advanced := false
	for _, stream := range domain.Streams {
		candidate := latest[stream]
		if candidate == nil {
			continue
		}
		current := pre.Get(stream)
		if current != nil && !candidate.After(*current) {
			continue
		}
		next.Set(stream, candidate)
		advanced = true
	}
	return next, advanced
}
