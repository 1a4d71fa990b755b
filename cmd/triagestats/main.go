package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/triagestats/triagestats/internal/analyze"
	"github.com/triagestats/triagestats/internal/config"
	"github.com/triagestats/triagestats/internal/fetch"
	"github.com/triagestats/triagestats/internal/githubapi"
	"github.com/triagestats/triagestats/internal/membership"
	"github.com/triagestats/triagestats/internal/notify"
	"github.com/triagestats/triagestats/internal/report"
	"github.com/triagestats/triagestats/internal/response"
	"github.com/triagestats/triagestats/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		var rateErr *githubapi.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			_, _ = fmt.Fprintf(os.Stderr, "triagestats: %v\n", rateErr)
			_, _ = fmt.Fprintln(os.Stderr, "triagestats: wait for the quota reset or narrow the analysis window/repos and re-run")
		default:
			_, _ = fmt.Fprintf(os.Stderr, "triagestats: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var dryRun bool
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to YAML config file")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and auth, probe quota, and exit")
	flag.Parse()

	configFile, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = configFile.Close()
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(cfg.Report.LogLevel))
	logger, err := loggerConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "triagestats",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryRuntime.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient, err := buildHTTPClient(cfg.GitHub)
	if err != nil {
		return fmt.Errorf("build github http client: %w", err)
	}

	requestClient := githubapi.NewClient(httpClient, githubapi.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}, githubapi.RateLimitPolicy{
		MinRemainingThreshold: cfg.RateLimit.MinRemainingThreshold,
		MinResetBuffer:        cfg.RateLimit.MinResetBuffer,
		SecondaryLimitBackoff: cfg.RateLimit.SecondaryLimitBackoff,
	})

	dataClient, err := githubapi.NewDataClient(cfg.GitHub.APIBaseURL, requestClient)
	if err != nil {
		return fmt.Errorf("build github data client: %w", err)
	}

	restClient, err := githubapi.NewGitHubRESTClient(httpClient, cfg.GitHub.APIBaseURL)
	if err != nil {
		return fmt.Errorf("build github rest client: %w", err)
	}
	quotaProbe, err := githubapi.NewQuotaProbe(restClient)
	if err != nil {
		return fmt.Errorf("build quota probe: %w", err)
	}

	if dryRun {
		return runDryRun(ctx, quotaProbe, logger)
	}

	resolver, err := membership.Resolve(ctx, dataClient, membership.Config{
		Org:         cfg.Analysis.Org,
		TeamsByRepo: cfg.Analysis.TeamsByRepo,
		Bots:        cfg.Analysis.Bots,
	}, logger)
	if err != nil {
		return githubapi.DecorateRateLimit(ctx, quotaProbe, fmt.Errorf("resolve membership: %w", err))
	}

	locator, err := response.NewLocator(dataClient, cfg.Analysis.Org, cfg.Analysis.ResponseScanPageSize, logger)
	if err != nil {
		return fmt.Errorf("build response locator: %w", err)
	}
	processor := analyze.NewProcessor(locator, resolver, logger)

	orchestrator, err := fetch.New(dataClient, processor, fetch.Config{
		Owner:       cfg.Analysis.Org,
		Repos:       cfg.Analysis.Repos,
		WindowFrom:  cfg.Analysis.WindowFrom,
		WindowTo:    cfg.Analysis.WindowTo,
		PRBatchSize: cfg.Analysis.PRBatchSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("build fetch orchestrator: %w", err)
	}

	started := time.Now()
	records, err := orchestrator.Run(ctx)
	if err != nil {
		return githubapi.DecorateRateLimit(ctx, quotaProbe, err)
	}
	logger.Info("analysis completed",
		zap.Int("records", len(records)),
		zap.Duration("duration", time.Since(started)),
	)

	overall := analyze.Overall(records)
	weekly := analyze.Weekly(records)

	if err := writeCSVFile(cfg.Report.CSVPath, records); err != nil {
		return err
	}
	logger.Info("csv report written", zap.String("path", cfg.Report.CSVPath))

	if err := report.WriteSummary(os.Stdout, overall, weekly); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	sendNotification(ctx, cfg.Notify, overall, weekly, records, logger)
	return nil
}

func runDryRun(ctx context.Context, probe *githubapi.QuotaProbe, logger *zap.Logger) error {
	statuses, err := probe.GetQuotaStatus(ctx)
	if err != nil {
		return fmt.Errorf("quota probe: %w", err)
	}
	for _, status := range statuses {
		logger.Info("quota status",
			zap.String("resource", string(status.Resource)),
			zap.Int("remaining", status.Remaining),
			zap.Int("limit", status.Limit),
			zap.Time("reset_at", status.ResetAt),
		)
	}
	return nil
}

func buildHTTPClient(cfg config.GitHubConfig) (*http.Client, error) {
	if cfg.Token != "" {
		return githubapi.NewTokenHTTPClient(cfg.Token, cfg.RequestTimeout, nil)
	}
	return githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
		AppID:          cfg.AppID,
		InstallationID: cfg.InstallationID,
		PrivateKeyPath: cfg.PrivateKeyPath,
		Timeout:        cfg.RequestTimeout,
	})
}

func writeCSVFile(path string, records []*analyze.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	if err := report.WriteCSV(file, records); err != nil {
		_ = file.Close()
		return fmt.Errorf("write csv report: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	return nil
}

// Notification delivery never fails the run; the local report is the primary
// deliverable.
func sendNotification(
	ctx context.Context,
	cfg config.NotifyConfig,
	overall analyze.OverallMetrics,
	weekly []analyze.WeeklySummary,
	records []*analyze.Record,
	logger *zap.Logger,
) {
	if cfg.WebhookURL == "" {
		return
	}

	notifier, err := notify.New(notify.Config{
		WebhookURL: cfg.WebhookURL,
		Channel:    cfg.Channel,
	}, nil)
	if err != nil {
		logger.Warn("notification setup failed", zap.Error(err))
		return
	}

	unansweredCSV := ""
	if cfg.AttachUnanswered {
		unanswered := report.Unanswered(records)
		if len(unanswered) > 0 {
			builder := &strings.Builder{}
			if err := report.WriteCSV(builder, unanswered); err != nil {
				logger.Warn("building notification attachment failed", zap.Error(err))
			} else {
				unansweredCSV = builder.String()
			}
		}
	}

	if err := notifier.SendDigest(ctx, overall, weekly, unansweredCSV); err != nil {
		logger.Warn("notification delivery failed", zap.Error(err))
		return
	}
	logger.Info("notification delivered", zap.String("channel", cfg.Channel))
}

func logLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
