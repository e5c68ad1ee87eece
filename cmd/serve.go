package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
	"github.com/teemow/inboxrelay/internal/server"
	"github.com/teemow/inboxrelay/internal/sheet"
	"github.com/teemow/inboxrelay/internal/tools/common"
	"github.com/teemow/inboxrelay/internal/tools/sheet_tools"
)

// Supported MCP transports.
const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		httpAddr  string
		yolo      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the spreadsheet and
document tools the relay uses, confined to the download directory.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Safety Mode:
  By default, the server operates in read-only mode.
  Use --yolo to enable sheet_apply_edits, which writes corrected files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var metrics *instrumentation.Metrics
			if transport != transportStdio {
				provider, err := instrumentation.NewProvider(ctx, cfg.Instrumentation(version))
				if err != nil {
					return fmt.Errorf("failed to create instrumentation provider: %w", err)
				}
				defer func() { _ = provider.Shutdown(context.Background()) }()
				metrics = provider.Metrics()
			}

			mcpSrv := mcpserver.NewMCPServer("inboxrelay", version,
				mcpserver.WithToolCapabilities(true),
			)
			deps := sheet_tools.Deps{
				Processor:       sheet.New(sheet.Config{Logger: logger}),
				BaseDir:         cfg.Worker.DownloadDir,
				Suffix:          cfg.Worker.Suffix,
				Instrumentation: common.Instrumentation{Metrics: metrics, Logger: logger},
			}
			if err := sheet_tools.RegisterSheetTools(mcpSrv, deps, !yolo); err != nil {
				return fmt.Errorf("failed to register sheet tools: %w", err)
			}

			switch transport {
			case transportStdio:
				return runStdioServer(mcpSrv)
			case transportStreamableHTTP:
				return runStreamableHTTPServer(ctx, mcpSrv, httpAddr, !yolo, logger)
			default:
				return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (sheet_apply_edits)")
	cmd.Flags().String("download-dir", "downloads", "Directory the tools may read and write. Can also use WORKER_DOWNLOAD_DIR env var.")

	return cmd
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr string, readOnly bool, logger *slog.Logger) error {
	httpSrv := mcpserver.NewStreamableHTTPServer(mcpSrv)

	if readOnly {
		logger.Info("starting server in READ-ONLY mode (use --yolo to enable write operations)")
	} else {
		logger.Info("starting server with WRITE operations enabled (--yolo flag is set)")
	}
	logger.Info("streamable HTTP server starting", slog.String("addr", addr), slog.String("endpoint", "/mcp"))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped", logging.Status(logging.StatusSuccess))
	return nil
}
