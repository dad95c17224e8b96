package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/rostermap/pkg/cache"
	"github.com/matzehuels/rostermap/pkg/dataset"
	"github.com/matzehuels/rostermap/pkg/observability"
	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/server"
	"github.com/matzehuels/rostermap/pkg/session"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	addr       string
	redisURL   string
	watch      bool
	sessionTTL time.Duration
	noMetrics  bool
	noCache    bool
}

func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags optionFlags
		so    serveOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Long: `Serve the dataset over HTTP. Viewers create a session, play steps and
fetch frames or frame diffs, or drive a session over a WebSocket stream.

Rendered artifacts are cached on disk, or in Redis with --redis. With
--watch the dataset is reloaded when its files change; running sessions
keep the dataset they started with.`,
		Example: `  rostermap serve --addr :8080
  rostermap serve --watch --redis redis://localhost:6379/0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runServe(cmd.Context(), opts, so)
		},
	}

	flags.registerData(cmd)
	flags.registerOutput(cmd)
	cmd.Flags().StringVar(&so.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&so.redisURL, "redis", "", "Redis URL for the render cache (default: file cache)")
	cmd.Flags().BoolVar(&so.watch, "watch", false, "reload the dataset when its files change")
	cmd.Flags().DurationVar(&so.sessionTTL, "session-ttl", session.DefaultTTL, "expire sessions idle for this long")
	cmd.Flags().BoolVar(&so.noMetrics, "no-metrics", false, "disable the Prometheus /metrics endpoint")
	cmd.Flags().BoolVar(&so.noCache, "no-cache", false, "disable the render cache")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts pipeline.Options, so serveOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	loaded, err := pipeline.Load(ctx, opts)
	if err != nil {
		return err
	}

	renderCache, err := c.serveCache(ctx, so)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(renderCache, newKeyer(), c.Logger)
	defer runner.Close()

	cfg := server.Config{
		Options: opts,
		Runner:  runner,
		Store:   session.NewStore(so.sessionTTL),
		Logger:  c.Logger,
	}
	if !so.noMetrics {
		prom := observability.NewPrometheus()
		prom.Register()
		defer observability.Reset()
		cfg.Metrics = prom.Handler()
	}
	srv := server.New(cfg, loaded)

	httpSrv := &http.Server{
		Addr:              so.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	printServeSummary(so, loaded)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv.Run(ctx, server.DefaultCleanupInterval)
		return nil
	})
	if so.watch {
		g.Go(func() error {
			return dataset.Watch(ctx, opts.Data, opts.LoadOptions(), 0, func(ds *dataset.Dataset, err error) {
				c.reload(srv, opts, ds, err)
			})
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		c.Logger.Info("listening", "addr", so.addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	c.Logger.Info("server stopped")
	return nil
}

func printServeSummary(so serveOptions, loaded *pipeline.Loaded) {
	renderCache := "file"
	switch {
	case so.noCache:
		renderCache = "off"
	case so.redisURL != "":
		renderCache = "redis (zstd)"
	}
	fmt.Println(StyleTitle.Render(appName + " serve"))
	printKeyValue("address", so.addr)
	printKeyValue("dataset", fmt.Sprintf("%d members · %d territories · %d steps",
		len(loaded.Dataset.Members), len(loaded.Dataset.Territories), len(loaded.Dataset.Steps)))
	printKeyValue("cache", renderCache)
	printKeyValue("sessions", "idle ttl "+so.sessionTTL.String())
	printKeyValue("metrics", onOff(!so.noMetrics))
	printKeyValue("watch", onOff(so.watch))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// reload swaps in a reloaded dataset. A dataset that fails to load leaves
// the current one in place.
func (c *CLI) reload(srv *server.Server, opts pipeline.Options, ds *dataset.Dataset, err error) {
	if err != nil {
		c.Logger.Warn("reload failed, keeping current dataset", "err", err)
		return
	}
	hash, err := opts.Data.Hash()
	if err != nil {
		c.Logger.Warn("reload failed, keeping current dataset", "err", err)
		return
	}
	srv.SetDataset(&pipeline.Loaded{Dataset: ds, Hash: hash})
	c.Logger.Info("dataset reloaded", "members", len(ds.Members), "steps", len(ds.Steps), "hash", hash[:12])
}

// serveCache picks the render cache: Redis when configured, the file
// cache otherwise.
func (c *CLI) serveCache(ctx context.Context, so serveOptions) (cache.Cache, error) {
	if so.noCache || so.redisURL == "" {
		return c.newCache(so.noCache), nil
	}
	rc, err := cache.OpenRedis(ctx, so.redisURL, cache.WithKeyPrefix(appName+":"))
	if err != nil {
		return nil, err
	}
	compressed, err := cache.NewCompressed(rc)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	c.Logger.Info("using redis cache")
	return compressed, nil
}
