package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

const dateFormat = "2006-01-02"

// Config is the root application configuration.
type Config struct {
	GitHub    GitHubConfig
	Analysis  AnalysisConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Report    ReportConfig
	Notify    NotifyConfig
	Telemetry TelemetryConfig
}

// GitHubConfig configures GitHub API access. Exactly one of Token or the
// App auth triple must be set.
type GitHubConfig struct {
	APIBaseURL     string
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	RequestTimeout time.Duration
}

// AnalysisConfig configures the analysis scope and scan bounds.
type AnalysisConfig struct {
	Org        string
	Repos      []string
	WindowFrom time.Time
	WindowTo   time.Time
	// ResponseScanPageSize bounds the per-item event scan. Responses beyond
	// this page are not observed; making the scan exhaustive would change
	// the tool's rate-limit footprint.
	ResponseScanPageSize int
	PRBatchSize          int
	TeamsByRepo          map[string][]string
	Bots                 []string
}

// RateLimitConfig configures rate-limit controls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// RetryConfig configures retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ReportConfig configures report output.
type ReportConfig struct {
	CSVPath  string
	LogLevel string
}

// NotifyConfig configures Slack digest delivery.
type NotifyConfig struct {
	WebhookURL       string
	Channel          string
	AttachUnanswered bool
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg, err := raw.toConfig()
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	hasToken := strings.TrimSpace(c.GitHub.Token) != ""
	hasApp := c.GitHub.AppID > 0 || c.GitHub.InstallationID > 0 || c.GitHub.PrivateKeyPath != ""
	if !hasToken && !hasApp {
		errs = append(errs, "github.token or github app credentials are required")
	}
	if hasToken && hasApp {
		errs = append(errs, "github.token and github app credentials are mutually exclusive")
	}
	if hasApp {
		if c.GitHub.AppID <= 0 {
			errs = append(errs, "github.app_id must be > 0")
		}
		if c.GitHub.InstallationID <= 0 {
			errs = append(errs, "github.installation_id must be > 0")
		}
		if c.GitHub.PrivateKeyPath == "" {
			errs = append(errs, "github.private_key_path is required")
		}
	}

	if c.Analysis.Org == "" {
		errs = append(errs, "analysis.org is required")
	}
	if len(c.Analysis.Repos) == 0 {
		errs = append(errs, "analysis.repos must contain at least one repository")
	}
	seenRepos := make(map[string]struct{}, len(c.Analysis.Repos))
	for _, repo := range c.Analysis.Repos {
		if _, ok := seenRepos[repo]; ok {
			errs = append(errs, "analysis.repos contains duplicate repo: "+repo)
		}
		seenRepos[repo] = struct{}{}
	}
	if c.Analysis.WindowFrom.IsZero() {
		errs = append(errs, "analysis.window_from is required (YYYY-MM-DD)")
	}
	if c.Analysis.WindowTo.IsZero() {
		errs = append(errs, "analysis.window_to is required (YYYY-MM-DD)")
	}
	if !c.Analysis.WindowFrom.IsZero() && !c.Analysis.WindowTo.IsZero() &&
		c.Analysis.WindowTo.Before(c.Analysis.WindowFrom) {
		errs = append(errs, "analysis.window_to must not be before analysis.window_from")
	}
	if c.Analysis.ResponseScanPageSize <= 0 {
		errs = append(errs, "analysis.response_scan_page_size must be > 0")
	}
	if c.Analysis.PRBatchSize <= 0 {
		errs = append(errs, "analysis.pr_batch_size must be > 0")
	}
	for repo := range c.Analysis.TeamsByRepo {
		if _, ok := seenRepos[repo]; !ok {
			errs = append(errs, "analysis.teams_by_repo references unknown repo: "+repo)
		}
	}

	if !slices.Contains(validLogLevels, c.Report.LogLevel) {
		errs = append(errs, "report.log_level must be one of debug|info|warn|error")
	}

	if c.Notify.Channel != "" && c.Notify.WebhookURL == "" {
		errs = append(errs, "notify.webhook_url is required when notify.channel is set")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 20 * time.Second
	}
	if cfg.Analysis.ResponseScanPageSize == 0 {
		cfg.Analysis.ResponseScanPageSize = 10
	}
	if cfg.Analysis.PRBatchSize == 0 {
		cfg.Analysis.PRBatchSize = 5
	}
	if cfg.RateLimit.MinRemainingThreshold == 0 {
		cfg.RateLimit.MinRemainingThreshold = 50
	}
	if cfg.RateLimit.MinResetBuffer == 0 {
		cfg.RateLimit.MinResetBuffer = 10 * time.Second
	}
	if cfg.RateLimit.SecondaryLimitBackoff == 0 {
		cfg.RateLimit.SecondaryLimitBackoff = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = 2 * time.Second
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = time.Minute
	}
	if cfg.Report.CSVPath == "" {
		cfg.Report.CSVPath = "response-report.csv"
	}
	if cfg.Report.LogLevel == "" {
		cfg.Report.LogLevel = "info"
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

func parseWindowDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateFormat, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return parsed.UTC(), nil
}

type rawConfig struct {
	GitHub    rawGitHub    `yaml:"github"`
	Analysis  rawAnalysis  `yaml:"analysis"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Retry     rawRetry     `yaml:"retry"`
	Report    rawReport    `yaml:"report"`
	Notify    rawNotify    `yaml:"notify"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL     string   `yaml:"api_base_url"`
	Token          string   `yaml:"token"`
	AppID          int64    `yaml:"app_id"`
	InstallationID int64    `yaml:"installation_id"`
	PrivateKeyPath string   `yaml:"private_key_path"`
	RequestTimeout duration `yaml:"request_timeout"`
}

type rawAnalysis struct {
	Org                  string              `yaml:"org"`
	Repos                []string            `yaml:"repos"`
	WindowFrom           string              `yaml:"window_from"`
	WindowTo             string              `yaml:"window_to"`
	ResponseScanPageSize int                 `yaml:"response_scan_page_size"`
	PRBatchSize          int                 `yaml:"pr_batch_size"`
	TeamsByRepo          map[string][]string `yaml:"teams_by_repo"`
	Bots                 []string            `yaml:"bots"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawReport struct {
	CSVPath  string `yaml:"csv_path"`
	LogLevel string `yaml:"log_level"`
}

type rawNotify struct {
	WebhookURL       string `yaml:"webhook_url"`
	Channel          string `yaml:"channel"`
	AttachUnanswered bool   `yaml:"attach_unanswered"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() (*Config, error) {
	windowFrom, err := parseWindowDate(r.Analysis.WindowFrom)
	if err != nil {
		return nil, fmt.Errorf("analysis.window_from: %w", err)
	}
	windowTo, err := parseWindowDate(r.Analysis.WindowTo)
	if err != nil {
		return nil, fmt.Errorf("analysis.window_to: %w", err)
	}

	return &Config{
		GitHub: GitHubConfig{
			APIBaseURL:     r.GitHub.APIBaseURL,
			Token:          r.GitHub.Token,
			AppID:          r.GitHub.AppID,
			InstallationID: r.GitHub.InstallationID,
			PrivateKeyPath: r.GitHub.PrivateKeyPath,
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
		},
		Analysis: AnalysisConfig{
			Org:                  r.Analysis.Org,
			Repos:                r.Analysis.Repos,
			WindowFrom:           windowFrom,
			WindowTo:             windowTo,
			ResponseScanPageSize: r.Analysis.ResponseScanPageSize,
			PRBatchSize:          r.Analysis.PRBatchSize,
			TeamsByRepo:          r.Analysis.TeamsByRepo,
			Bots:                 r.Analysis.Bots,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		Report: ReportConfig{
			CSVPath:  r.Report.CSVPath,
			LogLevel: r.Report.LogLevel,
		},
		Notify: NotifyConfig{
			WebhookURL:       r.Notify.WebhookURL,
			Channel:          r.Notify.Channel,
			AttachUnanswered: r.Notify.AttachUnanswered,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}, nil
}
