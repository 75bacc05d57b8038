package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quotedesk/internal/config"
	"quotedesk/internal/httpserver"
	"quotedesk/internal/logging"
	"quotedesk/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgPath string

	root := &cobra.Command{
		Use:           "quotedesk",
		Short:         "Quotation folder backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (yaml, json or toml)")
	root.PersistentFlags().String("root", "", "storage root, one directory per folder")
	root.PersistentFlags().String("state", "", "state dir for staging and thumbnails (outside root)")
	mustBind(v, "root", root.PersistentFlags().Lookup("root"))
	mustBind(v, "state", root.PersistentFlags().Lookup("state"))

	load := func() (config.Config, error) { return config.Load(v, cfgPath) }
	root.AddCommand(
		newServeCmd(v, load),
		newExtractCmd(v, load),
		newConfigCmd(load),
	)
	return root
}

func newServeCmd(v *viper.Viper, load func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default 0.0.0.0:8000)")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().Bool("webdav", true, "mount the storage root read-only under /dav/")
	mustBind(v, "addr", cmd.Flags().Lookup("addr"))
	mustBind(v, "log.level", cmd.Flags().Lookup("log-level"))
	mustBind(v, "webdav", cmd.Flags().Lookup("webdav"))
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	srv, err := httpserver.New(httpserver.Options{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
	})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info("quotedesk listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("root", cfg.Root),
		zap.Bool("webdav", cfg.WebDAV),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return hs.Shutdown(sctx)
	})
	return g.Wait()
}

func mustBind(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}
