package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/osmraster/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [OSM_IDS...]",
	Short: "Serve tiles over HTTP, rendering them on demand",
	Long: `Serve renders tiles on GET /{z}/{x}/{y}.png requests. Appending @2x to
the tile name renders at double resolution. Optional trailing OSM IDs
restrict rendering to those entities, which helps debugging stylesheets.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("tile-cache-size", server.DefaultCacheSize, "Encoded tiles kept in memory (negative disables)")

	mustBind := func(key, flag string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("http.address", "addr")
	mustBind("http.tile-cache-size", "tile-cache-size")
}

func runServe(cmd *cobra.Command, args []string) error {
	filter, err := parseIDFilter(args)
	if err != nil {
		return err
	}

	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	registry := prometheus.NewRegistry()
	metrics := server.NewMetrics(registry)

	tiles, err := server.NewTileHandler(p.reader, p.styler, p.drawer, server.TileHandlerConfig{
		CacheSize: viper.GetInt("http.tile-cache-size"),
		Filter:    filter,
	}, metrics, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", tiles)

	srv := &http.Server{
		Addr:              viper.GetString("http.address"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving tiles", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
