package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/surveyforge/surveyforge/config"
	"github.com/surveyforge/surveyforge/httpapi"
	"github.com/surveyforge/surveyforge/pipeline"
	"github.com/surveyforge/surveyforge/result"
	"github.com/surveyforge/surveyforge/search"
	"github.com/surveyforge/surveyforge/survey"
	"github.com/surveyforge/surveyforge/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the survey task engine in the foreground",
	Long: `Load configuration, wire the task registry, result store, and
pipeline, and serve the HTTP API until interrupted (SIGINT/SIGTERM).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	results, err := buildResultStore(ctx, cfg.Result)
	if err != nil {
		return fmt.Errorf("build result store: %w", err)
	}

	pl := buildPipeline(cfg.Pipeline, log)
	if err := pl.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	mgr := task.NewManager(registry, results, search.NullProcessor{}, pl, log,
		task.WithCheckInterval(cfg.Task.CheckInterval),
		task.WithTimeout(cfg.Task.Timeout),
		task.WithTTL(cfg.Task.TTL))

	srv := httpapi.NewServer(cfg.Server.ListenAddr, mgr, results, pl, log)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start http api: %w", err)
	}

	log.WithField("addr", cfg.Server.ListenAddr).Info("surveyctl serve: ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("surveyctl serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http api shutdown")
	}
	if err := pl.End(shutdownCtx); err != nil {
		log.WithError(err).Error("pipeline end")
	}
	pl.Wait()
	return nil
}

func buildRegistry(cfg config.RegistryConfig) (task.Registry, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return task.NewKVRegistry(client, "survey_task:"), nil
	case "mysql":
		return task.NewMySQLRegistry(cfg.DSN)
	case "sqlite":
		return task.NewSQLiteRegistry(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}

func buildResultStore(ctx context.Context, cfg config.ResultConfig) (result.Store, error) {
	switch cfg.Backend {
	case "mongo":
		return result.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, "results")
	case "sqlite":
		return result.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown result backend %q", cfg.Backend)
	}
}

// buildPipeline assembles the single-node sanitizing sink the engine ships
// with out of the box: survey/business logic beyond sanitization is an
// external collaborator's concern (search.Processor, an llm.Model-backed
// node a deployer plugs in), not something this command hardcodes.
func buildPipeline(cfg config.PipelineConfig, log logrus.FieldLogger) *pipeline.Sequential {
	retry := pipeline.DefaultRetryPolicy()
	if cfg.MaxRetryAttempts > 0 {
		retry.MaxAttempts = cfg.MaxRetryAttempts
	}

	sink := pipeline.NewNode("sanitize", func(ctx context.Context, in any) (any, error) {
		raw, ok := in.([]byte)
		if !ok {
			return nil, nil
		}
		clean := survey.Sanitize(string(raw))
		log.WithField("bytes", len(clean)).Debug("pipeline: sanitized payload")
		return nil, nil
	},
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithQueueCapacity(cfg.QueueCapacity),
		pipeline.WithNoOutput(),
		pipeline.WithDiscardNilOutput(),
		pipeline.WithRetryPolicy(retry),
	)
	return pipeline.NewSequential(sink)
}
