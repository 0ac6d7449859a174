// Command annotext-server hosts collaborative CRDT text buffers over
// websocket, replacing the original project's bare net/http main with a
// cobra command, viper-backed configuration, and Prometheus/zerolog
// observability.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/annotext/annotext/internal/buffer"
	"github.com/annotext/annotext/internal/collaborators/codeintel"
	"github.com/annotext/annotext/internal/collaborators/compileexplorer"
	"github.com/annotext/annotext/internal/collaborators/diagnostics"
	"github.com/annotext/annotext/internal/collaborators/fileloader"
	"github.com/annotext/annotext/internal/collaborators/fixit"
	"github.com/annotext/annotext/internal/collaborators/formatter"
	"github.com/annotext/annotext/internal/collaborators/fswatchcollab"
	"github.com/annotext/annotext/internal/config"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/observability"
	"github.com/annotext/annotext/internal/transport/ws"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "annotext-server",
		Short:         "Serve collaborative annotated-text buffers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config-dir", ".", "directory to search for an annotext.yaml config file")
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "annotext-server (dev)")
			return nil
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, nil)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	hub := ws.NewHub(func(docID string) *buffer.Buffer {
		return openBuffer(docID, cfg, metrics)
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("annotext-server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openBuffer constructs a new Buffer for docID, seeded from the file at
// docID on disk, and registers the collaborators cfg enables for it.
func openBuffer(docID string, cfg *config.CoreContext, metrics *observability.Metrics) *buffer.Buffer {
	metrics.ActiveBuffers.Inc()
	buf := buffer.New(docID, crdt.New())

	buf.RunAsync(fileloader.New(docID))

	if cfg.EnableFormatter && cfg.FormatterCommand != "" {
		buf.RunSync(formatter.New(cfg.FormatterCommand))
	}
	if cfg.EnableDiagnostics && cfg.LinterCommand != "" {
		buf.RunSync(diagnostics.New(docID, shellLinter{cfg.LinterCommand}, false))
	}
	if cfg.EnableFixit {
		buf.RunSync(fixit.New("auto"))
	}
	if cfg.EnableCompileExplorer && cfg.CompilerCommand != "" {
		buf.RunSync(compileexplorer.New(docID, shellCompiler{cfg.CompilerCommand}))
	}
	if cfg.EnableCodeIntel {
		buf.RunSync(codeintel.New(docID, nullAnalyzer{}))
	}
	if cfg.EnableFileWatch {
		buf.RunAsync(fswatchcollab.New())
	}

	return buf
}

// nullAnalyzer reports no tokens. codeintel needs a real tree-sitter or
// gopls-backed Analyzer wired in to be useful; this keeps the collaborator
// runnable with no such backend configured.
type nullAnalyzer struct{}

func (nullAnalyzer) Analyze(filename, text string) ([]codeintel.Token, error) { return nil, nil }
