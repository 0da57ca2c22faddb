package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/zumo-go/internal/sessionstore"
	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

const (
	defaultTailInterval    = 5 * time.Second
	minTailInterval        = time.Second
	metricsShutdownTimeout = 5 * time.Second
)

// Tail flags, bound in newTableTailCmd().
var (
	flagTailInterval time.Duration
	flagMetricsAddr  string
)

func newTableTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail <table>",
		Short: "Poll a table and print rows as they appear",
		Long: `Poll a table and print rows not seen before, until interrupted.

The saved session is reloaded when another zumo-go process logs in or out.
With --metrics-addr, request metrics are served at /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: runTableTail,
	}

	cmd.Flags().DurationVar(&flagTailInterval, "interval", defaultTailInterval, "poll interval")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

func runTableTail(cmd *cobra.Command, args []string) error {
	if flagTailInterval < minTailInterval {
		return fmt.Errorf("--interval must be at least %s", minTailInterval)
	}

	logger := buildLogger()
	ctx, stop := shutdownContext(cmd.Context(), logger)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sess, err := NewCLISession(resolvedCfg, zumo.NewMetrics(reg), logger)
	if err != nil {
		return err
	}

	if flagMetricsAddr != "" {
		addr, err := serveMetrics(ctx, flagMetricsAddr, reg, logger)
		if err != nil {
			return err
		}

		statusf("Serving metrics on http://%s/metrics\n", addr)
	}

	if fs, ok := sess.Store.(*sessionstore.FileStore); ok {
		go func() {
			if err := sessionstore.Watch(ctx, fs.Path(sess.Profile.Name), sess.Apply, logger); err != nil {
				logger.Warn("not watching session file", slog.String("error", err.Error()))
			}
		}()
	}

	t := newTailer(sess.Client.Table(args[0]), cmd.OutOrStdout(), flagJSON, logger)

	statusf("Tailing %s every %s. Press Ctrl-C to stop.\n", args[0], flagTailInterval)

	t.run(ctx, flagTailInterval)

	return nil
}

// tailer prints rows of a table that earlier polls have not returned.
type tailer struct {
	table  *zumo.Table
	out    io.Writer
	json   bool
	logger *slog.Logger
	seen   map[string]bool
}

func newTailer(table *zumo.Table, out io.Writer, jsonOut bool, logger *slog.Logger) *tailer {
	return &tailer{
		table:  table,
		out:    out,
		json:   jsonOut,
		logger: logger,
		seen:   make(map[string]bool),
	}
}

// run polls immediately and then every interval until ctx is done. Poll
// failures are logged and the next tick tries again.
func (t *tailer) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := t.poll(ctx); err != nil && ctx.Err() == nil {
			if errors.Is(err, zumo.ErrUnauthorized) {
				t.logger.Warn("session rejected by the service; run 'zumo-go login'",
					slog.String("table", t.table.Name()))
			} else {
				t.logger.Warn("poll failed",
					slog.String("table", t.table.Name()),
					slog.String("error", err.Error()),
				)
			}
		}

		select {
		case <-ctx.Done():
			t.logger.Info("tail stopped", slog.String("table", t.table.Name()))
			return
		case <-ticker.C:
		}
	}
}

// poll reads the table once and prints unseen rows.
func (t *tailer) poll(ctx context.Context) error {
	rows, err := t.table.GetAll(ctx)
	if err != nil {
		return err
	}

	var fresh []zumo.Item

	for _, row := range rows {
		key := rowKey(row)
		if t.seen[key] {
			continue
		}

		t.seen[key] = true
		fresh = append(fresh, row)
	}

	t.logger.Debug("polled table",
		slog.String("table", t.table.Name()),
		slog.Int("rows", len(rows)),
		slog.Int("new", len(fresh)),
	)

	if len(fresh) == 0 {
		return nil
	}

	if t.json {
		enc := json.NewEncoder(t.out)
		for _, row := range fresh {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}

		return nil
	}

	return printItems(t.out, fresh)
}

// rowKey identifies a row across polls: its id, or its whole content when
// the table has no id column.
func rowKey(row zumo.Item) string {
	if id, ok := row["id"]; ok && id != nil {
		return "id:" + formatCell(id)
	}

	data, _ := json.Marshal(row)

	return "row:" + string(data)
}

// serveMetrics exposes reg at /metrics on addr until ctx is done. It
// returns the bound address, which differs from addr when addr has port 0.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("metrics server listening", slog.String("addr", ln.Addr().String()))

	return ln.Addr().String(), nil
}
