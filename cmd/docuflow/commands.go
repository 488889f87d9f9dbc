package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/cli"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/ingest"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/server"
	"github.com/hyperjump/docuflow/internal/watcher"
)

// buildQuery joins positional args so multi-word queries work with or without quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// withComponents loads config, wires the application and runs fn against it.
func withComponents(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, c *Components, role string, format cli.OutputFormat) error) error {
	cfg, logger, format, err := opts.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer c.Close()
	return fn(ctx, c, opts.roleFor(cfg), format)
}

func newServerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP API and the inbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, c *Components, _ string, _ cli.OutputFormat) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				cfg, logger := c.Config, c.Logger

				if len(cfg.Watch.Directories) > 0 {
					w := watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(),
						c.ingestWatched, watcher.WithLogger(logger))
					if err := w.Start(ctx); err != nil {
						return fmt.Errorf("failed to start watcher: %w", err)
					}
					defer w.Stop()
					go w.Sync(ctx)
				}

				srv := server.NewServer(c.Pipeline, c.Status, &cfg.Server, cfg.Security.DefaultRole, logger)
				errCh := make(chan error, 1)
				go func() { errCh <- srv.Start() }()
				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				logger.Info("Shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Stop(shutdownCtx)
			})
		},
	}
}

// ingestWatched ingests a settled inbox file and audits it as a system ingestion.
func (c *Components) ingestWatched(ctx context.Context, root, path string) {
	res, err := c.Ingester.IngestFile(ctx, root, path)
	if err != nil {
		c.Logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	if res.Skipped {
		return
	}
	if err := c.Audit.Log(audit.EventIngest, map[string]any{
		"role":        "system",
		"origin":      "watch",
		"source_file": res.Document.SourceFile,
		"document_id": res.Document.ID,
		"chunks":      res.Document.Chunks,
	}); err != nil {
		c.Logger.Error("audit write failed", zap.String("path", path), zap.Error(err))
	}
}

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var (
		exts      []string
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <file|dir>...",
		Short: "Extract, chunk and store documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, c *Components, role string, format cli.OutputFormat) error {
				total := &ingest.DirectoryReport{Failed: map[string]string{}}
				for _, path := range args {
					if err := ingestPath(ctx, c, role, path, exts, recursive, total); err != nil {
						return err
					}
				}
				return cli.WriteIngestReport(cmd.OutOrStdout(), total, format)
			})
		},
	}
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "only ingest these extensions (default: all supported)")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "descend into subdirectories")
	return cmd
}

// ingestPath adds path to total. Permission failures abort; per-file failures are recorded.
func ingestPath(ctx context.Context, c *Components, role, path string, exts []string, recursive bool, total *ingest.DirectoryReport) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		report, err := c.Pipeline.IngestDirectory(ctx, role, path, exts, recursive)
		if err != nil {
			return err
		}
		total.Ingested += report.Ingested
		total.Skipped += report.Skipped
		for p, msg := range report.Failed {
			total.Failed[filepath.Join(path, p)] = msg
		}
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := c.Pipeline.Ingest(ctx, role, filepath.Base(path), content)
	switch {
	case errors.Is(err, errs.ErrPermissionDenied):
		return err
	case err != nil:
		total.Failed[path] = err.Error()
	case res.Skipped:
		total.Skipped++
	default:
		total.Ingested++
	}
	return nil
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		topK      int
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid search grouped by source document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := buildQuery(args)
			if serverURL != "" {
				format, err := cli.ParseFormat(opts.output)
				if err != nil {
					return err
				}
				var res models.SearchResult
				client := newAPIClient(serverURL, opts.role)
				if err := client.post(cmd.Context(), "/api/v1/search", map[string]any{"query": query, "top_k": topK}, &res); err != nil {
					return err
				}
				return cli.WriteSearchResult(cmd.OutOrStdout(), &res, format)
			}
			return withComponents(cmd, opts, func(ctx context.Context, c *Components, role string, format cli.OutputFormat) error {
				res, err := c.Pipeline.Search(ctx, role, query, topK)
				if err != nil {
					return err
				}
				return cli.WriteSearchResult(cmd.OutOrStdout(), res, format)
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of fragments to retrieve (default from config)")
	cmd.Flags().StringVar(&serverURL, "server", "", "query a running server instead of opening the store")
	return cmd
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	var (
		topK           int
		classification string
		serverURL      string
	)
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Retrieve evidence, classify, route and execute",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.QueryRequest{Query: buildQuery(args), TopK: topK, Classification: classification}
			if serverURL != "" {
				format, err := cli.ParseFormat(opts.output)
				if err != nil {
					return err
				}
				var res models.QueryResult
				if err := newAPIClient(serverURL, opts.role).post(cmd.Context(), "/api/v1/query", req, &res); err != nil {
					return err
				}
				return cli.WriteQueryResult(cmd.OutOrStdout(), &res, format)
			}
			return withComponents(cmd, opts, func(ctx context.Context, c *Components, role string, format cli.OutputFormat) error {
				req.Role = role
				res, err := c.Pipeline.Run(ctx, req)
				if err != nil {
					return err
				}
				return cli.WriteQueryResult(cmd.OutOrStdout(), res, format)
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of fragments to retrieve (default from config)")
	cmd.Flags().StringVar(&classification, "classification", "", "override the classifier (needs override_route)")
	cmd.Flags().StringVar(&serverURL, "server", "", "send the query to a running server")
	return cmd
}

func newAuditCommand(opts *rootOptions) *cobra.Command {
	var f audit.Filter
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show audit records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.Limit < 0 {
				return errs.Validation("limit must be non-negative, got %d", f.Limit)
			}
			return withComponents(cmd, opts, func(ctx context.Context, c *Components, role string, format cli.OutputFormat) error {
				recs, err := c.Pipeline.AuditTrail(ctx, role, f)
				if err != nil {
					return err
				}
				return cli.WriteAuditRecords(cmd.OutOrStdout(), recs, format)
			})
		},
	}
	cmd.Flags().StringVar(&f.Event, "event", "", "only show this event type")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "show only the last N records")
	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store, index and registry status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if serverURL != "" {
				format, err := cli.ParseFormat(opts.output)
				if err != nil {
					return err
				}
				var st models.Status
				if err := newAPIClient(serverURL, opts.role).get(cmd.Context(), "/api/v1/status", &st); err != nil {
					return err
				}
				return cli.WriteStatus(cmd.OutOrStdout(), &st, format)
			}
			return withComponents(cmd, opts, func(ctx context.Context, c *Components, _ string, format cli.OutputFormat) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				return cli.WriteStatus(cmd.OutOrStdout(), st, format)
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "read status from a running server")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docuflow version %s\n", version)
		},
	}
}
