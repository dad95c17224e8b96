package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/rostermap/pkg/cache"
	"github.com/matzehuels/rostermap/pkg/observability"
)

// Runner executes the pipeline with caching. It holds no per-run state, so
// one Runner may serve many goroutines.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching and a nil keyer
// means [cache.DefaultKeyer].
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Result is one rendered artifact.
type Result struct {
	Data     []byte
	Progress float64
	CacheHit bool
}

// Stats summarises a run.
type Stats struct {
	LoadTime   time.Duration
	SceneTime  time.Duration
	RenderTime time.Duration
	CacheHits  int
}

// RenderFrame renders the frame of opts.Step at opts.Progress.
func (r *Runner) RenderFrame(ctx context.Context, opts Options) (Result, error) {
	results, _, err := r.render(ctx, opts, []float64{opts.Progress})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// RenderFrames renders opts.Frames evenly spaced frames of opts.Step in
// parallel. The scene is prepared at most once.
func (r *Runner) RenderFrames(ctx context.Context, opts Options) ([]Result, Stats, error) {
	if opts.Frames <= 0 {
		opts.Frames = DefaultFrames
	}
	return r.render(ctx, opts, ProgressValues(opts.Frames))
}

func (r *Runner) render(ctx context.Context, opts Options, progress []float64) ([]Result, Stats, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, Stats{}, fmt.Errorf("invalid options: %w", err)
	}

	hash, err := opts.Data.Hash()
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	prepare := sync.OnceValues(func() (*Prepared, error) {
		start := time.Now()
		loaded, err := Load(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		stats.LoadTime = time.Since(start)
		opts.Logger.Info("loaded dataset",
			"members", len(loaded.Dataset.Members),
			"territories", len(loaded.Dataset.Territories),
			"steps", len(loaded.Dataset.Steps),
			"duration", stats.LoadTime)

		start = time.Now()
		p, err := Prepare(ctx, loaded.Dataset, opts)
		if err != nil {
			return nil, fmt.Errorf("scene: %w", err)
		}
		stats.SceneTime = time.Since(start)
		opts.Logger.Info("prepared scene", "step", opts.Step, "metric", opts.Metric, "duration", stats.SceneTime)
		return p, nil
	})

	results := make([]Result, len(progress))
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, t := range progress {
		g.Go(func() error {
			key := r.Keyer.FrameKey(hash, opts.FrameKeyOpts(t))
			data, hit, err := r.cached(gctx, key, cache.TTLFrame, opts.Refresh, func() ([]byte, error) {
				p, err := prepare()
				if err != nil {
					return nil, err
				}
				return Render(gctx, p, t, opts)
			})
			if err != nil {
				return err
			}
			results[i] = Result{Data: data, Progress: t, CacheHit: hit}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	stats.RenderTime = time.Since(start)
	for _, res := range results {
		if res.CacheHit {
			stats.CacheHits++
		}
	}
	opts.Logger.Debug("rendered frames",
		"count", len(results),
		"cache_hits", stats.CacheHits,
		"format", opts.Format,
		"duration", stats.RenderTime)
	return results, stats, nil
}

// RenderNetwork renders the movement network of opts.Step.
func (r *Runner) RenderNetwork(ctx context.Context, opts Options, detailed bool) (Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid options: %w", err)
	}
	hash, err := opts.Data.Hash()
	if err != nil {
		return Result{}, err
	}
	key := r.Keyer.NetworkKey(hash, cache.NetworkKeyOpts{
		Step:     opts.Step,
		Format:   opts.Format,
		Detailed: detailed,
		Metric:   opts.Metric,
	})
	data, hit, err := r.cached(ctx, key, cache.TTLNetwork, opts.Refresh, func() ([]byte, error) {
		loaded, err := Load(ctx, opts)
		if err != nil {
			return nil, err
		}
		return RenderNetwork(ctx, loaded.Dataset, detailed, opts)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Data: data, CacheHit: hit}, nil
}

// cached returns the value of key, building and storing it on a miss.
// Cache failures are logged and otherwise ignored.
func (r *Runner) cached(ctx context.Context, key string, ttl time.Duration, refresh bool, build func() ([]byte, error)) ([]byte, bool, error) {
	keyType := cache.KeyType(key)
	if !refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Warn("cache read failed", "key_type", keyType, "err", err)
		}
		if hit {
			observability.Cache().OnCacheHit(ctx, keyType)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, keyType)
	}

	data, err := build()
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "key_type", keyType, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, keyType, len(data))
	}
	return data, false, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
