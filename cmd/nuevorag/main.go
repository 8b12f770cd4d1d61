// Package main is the nuevorag CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/nuevorag/internal/cli"
	"github.com/hyperjump/nuevorag/internal/config"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/server"
	"github.com/hyperjump/nuevorag/internal/storage"
	"github.com/hyperjump/nuevorag/internal/watcher"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/nuevorag/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// errReported is returned after a failure was already written to the output.
var errReported = errors.New("command failed")

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	output     string
	debug      bool
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present so that running from a project directory uses its config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds a logger.
func (o *options) setup() (*config.Config, string, *zap.Logger, error) {
	cfg, path, err := loadConfig(o.configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || o.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, path, logger, nil
}

func (o *options) format() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(o.output)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "nuevorag",
		Short:         "Multi-tenant document question answering",
		Long:          "nuevorag ingests PDF uploads into per-tenant vector collections and answers questions grounded in them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServerCmd(opts),
		newIngestCmd(opts),
		newQueryCmd(opts),
		newRunsCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("nuevorag version %s\n", version)
		},
	}
}

func newServerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP API (and the local uploads watcher when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(opts)
		},
	}
}

func runServer(opts *options) error {
	cfg, path, logger, err := opts.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", path), zap.Bool("debug", cfg.Debug || opts.debug))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error("failed to close components", zap.Error(err))
		}
	}()
	p := components.Pipeline

	var srvOpts []server.ServerOption
	if cfg.Watch.Enabled {
		if cfg.ObjectStore.Type != "local" {
			return fmt.Errorf("watch requires the local object store (object_store.type: local)")
		}
		w := watcher.NewWatcher(cfg.ObjectStore.LocalRoot, cfg.Watch.Bucket,
			func(ctx context.Context, event *models.ObjectEvent) {
				res := p.HandleEvent(ctx, event)
				for _, r := range res.Records {
					logger.Info("watch ingest",
						zap.String("key", r.ObjectKey),
						zap.String("status", string(r.Status)),
						zap.String("code", r.Code))
				}
			},
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		go w.SyncExisting()
		srvOpts = append(srvOpts, server.WithWatch(w))
		logger.Info("watching uploads", zap.String("dir", w.Dir()))
	}

	srv := server.NewServer(p, components.Ledger, cfg, logger, srvOpts...)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

// withComponents runs fn against a directly initialized pipeline.
func withComponents(opts *options, fn func(ctx context.Context, c *Components) error) (err error) {
	cfg, _, logger, err := opts.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := components.Close(); cerr != nil {
			logger.Error("failed to close components", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()
	return fn(ctx, components)
}

func newIngestCmd(opts *options) *cobra.Command {
	var (
		bucket    string
		eventFile string
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "ingest [key...]",
		Short: "Ingest uploaded objects by key, or every record of an event file",
		Long: `Ingest reads each object, extracts its text, and indexes it into the tenant collection.
Keys follow uploads/{tenant}/{document_type}/{filename} and may be URL-encoded.
With --event, the records of an object-created notification (JSON, "-" for stdin) are processed.`,
		Example: `  nuevorag ingest --bucket documents uploads/acme/contracts/lease.pdf
  nuevorag ingest --event notification.json
  nuevorag ingest --server "" --bucket documents uploads/acme/contracts/lease.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			event, err := ingestEvent(cmd.InOrStdin(), eventFile, bucket, args)
			if err != nil {
				return err
			}
			var res *models.BatchResult
			if serverURL != "" {
				res, err = newAPIClient(serverURL).HandleEvent(cmd.Context(), event)
				if err != nil {
					return err
				}
			} else {
				err = withComponents(opts, func(ctx context.Context, c *Components) error {
					res = c.Pipeline.HandleEvent(ctx, event)
					return nil
				})
				if err != nil {
					return err
				}
			}
			if err := cli.WriteBatchResult(cmd.OutOrStdout(), res, format); err != nil {
				return err
			}
			if !batchSucceeded(res) {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket holding the keys (default: watch bucket)")
	cmd.Flags().StringVar(&eventFile, "event", "", "object event JSON file, - for stdin")
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, `server URL; "" ingests directly`)
	return cmd
}

// ingestEvent builds the event to process from an event file or from positional keys.
func ingestEvent(stdin io.Reader, eventFile, bucket string, keys []string) (*models.ObjectEvent, error) {
	if eventFile != "" {
		if len(keys) > 0 {
			return nil, errors.New("use either --event or keys, not both")
		}
		r := stdin
		if eventFile != "-" {
			f, err := os.Open(eventFile)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		var event models.ObjectEvent
		if err := json.NewDecoder(r).Decode(&event); err != nil {
			return nil, fmt.Errorf("invalid event file: %w", err)
		}
		return &event, nil
	}
	if len(keys) == 0 {
		return nil, errors.New("at least one key or --event is required")
	}
	if bucket == "" {
		bucket = defaultWatchBucket()
	}
	event := &models.ObjectEvent{}
	for _, k := range keys {
		event.Records = append(event.Records, models.NewEventRecord(bucket, k, 0))
	}
	return event, nil
}

func defaultWatchBucket() string {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg.Watch.Bucket
}

// batchSucceeded reports whether every record was processed or deliberately skipped.
func batchSucceeded(res *models.BatchResult) bool {
	if !res.Success {
		return false
	}
	for _, r := range res.Records {
		if r.Status != models.StatusProcessed && r.Status != models.StatusSkipped {
			return false
		}
	}
	return true
}

func newQueryCmd(opts *options) *cobra.Command {
	var (
		req       models.QueryRequest
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from one tenant's documents",
		Long:  "The question is all remaining arguments joined by spaces, so quoting is optional.",
		Example: `  nuevorag query --tenant acme "¿Cuándo vence el contrato?"
  nuevorag query --tenant acme --type contracts --top-k 3 -o json cuando vence el contrato`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			req.Question = buildQuestion(args)
			var res *models.QueryResult
			if serverURL != "" {
				res, err = newAPIClient(serverURL).Query(cmd.Context(), req)
				if err != nil {
					return err
				}
			} else {
				err = withComponents(opts, func(ctx context.Context, c *Components) error {
					res = c.Pipeline.Query(ctx, req)
					return nil
				})
				if err != nil {
					return err
				}
			}
			if err := cli.WriteQueryResult(cmd.OutOrStdout(), res, format); err != nil {
				return err
			}
			if !res.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.TenantID, "tenant", "t", "", "tenant ID (required)")
	cmd.Flags().StringVar(&req.DocumentType, "type", "", "restrict to one document type")
	cmd.Flags().IntVarP(&req.TopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, `server URL; "" queries directly`)
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newRunsCmd(opts *options) *cobra.Command {
	var (
		filter    models.RunFilter
		status    string
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List ingestion runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			filter.Status = models.IngestStatus(status)
			var runs []*models.IngestionRun
			fetch := func(ctx context.Context, get func(string) (*models.IngestionRun, error), list func(models.RunFilter) ([]*models.IngestionRun, error)) error {
				if len(args) == 1 {
					run, err := get(args[0])
					if err != nil {
						return err
					}
					runs = []*models.IngestionRun{run}
					return nil
				}
				runs, err = list(filter)
				return err
			}
			if serverURL != "" {
				c := newAPIClient(serverURL)
				ctx := cmd.Context()
				err = fetch(ctx,
					func(id string) (*models.IngestionRun, error) { return c.GetRun(ctx, id) },
					func(f models.RunFilter) ([]*models.IngestionRun, error) { return c.ListRuns(ctx, f) })
			} else {
				err = withLedger(opts, func(ctx context.Context, l storage.RunLedger) error {
					return fetch(ctx,
						func(id string) (*models.IngestionRun, error) { return l.GetRun(ctx, id) },
						func(f models.RunFilter) ([]*models.IngestionRun, error) { return l.ListRuns(ctx, f) })
				})
			}
			if err != nil {
				return err
			}
			return cli.WriteRuns(cmd.OutOrStdout(), runs, format)
		},
	}
	cmd.Flags().StringVarP(&filter.TenantID, "tenant", "t", "", "only runs of this tenant")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (processed, failed, running)")
	cmd.Flags().IntVar(&filter.Limit, "limit", storage.DefaultListLimit, "maximum number of runs")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of runs to skip")
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, `server URL; "" reads the ledger directly`)
	return cmd
}

// withLedger opens only the run ledger; listing runs needs no models or stores.
func withLedger(opts *options, fn func(ctx context.Context, l storage.RunLedger) error) error {
	cfg, _, logger, err := opts.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cfg.Storage.Disabled || cfg.Storage.DatabasePath == "" {
		return errors.New("run ledger is disabled")
	}
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer ledger.Close()
	return fn(context.Background(), ledger)
}

func newStatusCmd(opts *options) *cobra.Command {
	var (
		tenant    string
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show run counts, disk usage and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			var status map[string]interface{}
			if serverURL != "" {
				status, err = newAPIClient(serverURL).Status(cmd.Context())
			} else {
				status, err = localStatus(opts, tenant)
			}
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), status, format)
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "count only runs of this tenant")
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, `server URL; "" reads local files directly`)
	return cmd
}

func localStatus(opts *options, tenant string) (map[string]interface{}, error) {
	var status map[string]interface{}
	err := withLedger(opts, func(ctx context.Context, l storage.RunLedger) error {
		counts, err := l.CountRuns(ctx, tenant)
		if err != nil {
			return err
		}
		status = map[string]interface{}{"ingestions": counts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	paths := map[string]string{"database": cfg.Storage.DatabasePath}
	if cfg.VectorStore.Type == "memory" {
		paths["vectors"] = cfg.VectorStore.PersistPath
	}
	if usage, err := storage.MeasureDiskUsage(paths); err == nil {
		status["disk_usage"] = usage
	}
	return status, nil
}

func writeStatus(w io.Writer, status map[string]interface{}, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	b, err := json.Marshal(status)
	if err != nil {
		return err
	}
	var s struct {
		Ingestions map[string]int64   `json:"ingestions"`
		DiskUsage  *storage.DiskUsage `json:"disk_usage"`
		Watch      map[string]string  `json:"watch"`
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, st := range []models.IngestStatus{models.StatusProcessed, models.StatusFailed, models.StatusRunning} {
		fmt.Fprintf(w, "%-18s %d\n", string(st)+":", s.Ingestions[string(st)])
	}
	if s.DiskUsage != nil {
		fmt.Fprintf(w, "disk_usage_bytes:  %d\n", s.DiskUsage.Total)
	}
	if s.Watch != nil {
		fmt.Fprintf(w, "watching:          %s (bucket %s)\n", s.Watch["dir"], s.Watch["bucket"])
	}
	return nil
}
