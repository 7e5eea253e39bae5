package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/govuk-api-client/pkg/client"
	"github.com/Sternrassler/govuk-api-client/pkg/content"
	"github.com/Sternrassler/govuk-api-client/pkg/logging"
	"github.com/Sternrassler/govuk-api-client/pkg/metrics"
	"github.com/Sternrassler/govuk-api-client/pkg/ratelimit"
	"github.com/Sternrassler/govuk-api-client/pkg/search"
)

const defaultUserAgent = "govuk-api-client/0.1 (+https://github.com/Sternrassler/govuk-api-client)"

// settings is the resolved configuration of one invocation.
type settings struct {
	BaseURL      string
	UserAgent    string
	RateLimit    int
	RateWindow   time.Duration
	RedisAddr    string
	MaxAttempts  int
	RetryBackoff time.Duration
	Timeout      time.Duration
	LogLevel     string
	LogFormat    string
	MetricsAddr  string
}

func loadSettings(v *viper.Viper) settings {
	return settings{
		BaseURL:      v.GetString("base_url"),
		UserAgent:    v.GetString("user_agent"),
		RateLimit:    v.GetInt("rate_limit"),
		RateWindow:   v.GetDuration("rate_window"),
		RedisAddr:    v.GetString("redis_addr"),
		MaxAttempts:  v.GetInt("max_attempts"),
		RetryBackoff: v.GetDuration("retry_backoff"),
		Timeout:      v.GetDuration("timeout"),
		LogLevel:     v.GetString("log_level"),
		LogFormat:    v.GetString("log_format"),
		MetricsAddr:  v.GetString("metrics_addr"),
	}
}

// app holds the clients shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     settings
	out     io.Writer
	logger  zerolog.Logger

	exec    *client.Client
	content *content.Client
	search  *search.Client

	redis       *redis.Client
	stopMetrics context.CancelFunc
	metricsDone chan error
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "govuk",
		Short: "Query the GOV.UK content and search APIs",
		Long: "govuk fetches content items and search results from GOV.UK.\n" +
			"Every request made by one invocation shares a single rate limit\n" +
			"budget, optionally coordinated across processes through Redis.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.govuk.yaml)")
	flags.String("base-url", client.DefaultBaseURL, "GOV.UK base URL")
	flags.String("user-agent", defaultUserAgent, "User-Agent sent with every request")
	flags.Int("rate-limit", ratelimit.DefaultMaxPerWindow, "maximum requests per rate window")
	flags.Duration("rate-window", ratelimit.DefaultWindow, "rate limit window")
	flags.String("redis-addr", "", "Redis address for a rate limit shared between processes")
	flags.Int("max-attempts", client.DefaultRetryConfig().MaxAttempts, "attempts per request, the first included")
	flags.Duration("retry-backoff", client.DefaultRetryConfig().InitialBackoff, "backoff before the first retry")
	flags.Duration("timeout", 30*time.Second, "timeout of a single attempt")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", string(logging.FormatConsole), "log format (console, json)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	for _, name := range []string{
		"base-url", "user-agent", "rate-limit", "rate-window", "redis-addr",
		"max-attempts", "retry-backoff", "timeout", "log-level", "log-format", "metrics-addr",
	} {
		cobra.CheckErr(a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name)))
	}

	root.AddCommand(contentCmd(a))
	root.AddCommand(searchCmd(a))
	root.AddCommand(totalCmd(a))
	root.AddCommand(infoCmd(a))
	root.AddCommand(facetsCmd(a))
	root.AddCommand(exportCmd(a))
	root.AddCommand(serveCmd(a))

	return root
}

func (a *app) readConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".govuk")
	}

	a.v.SetEnvPrefix("GOVUK")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// setup resolves configuration and builds the clients.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.readConfig(); err != nil {
		return err
	}
	a.cfg = loadSettings(a.v)
	a.out = cmd.OutOrStdout()

	if _, err := logging.Setup(logging.Config{
		Level:  a.cfg.LogLevel,
		Format: logging.Format(a.cfg.LogFormat),
		Output: cmd.ErrOrStderr(),
	}); err != nil {
		return err
	}
	a.logger = logging.NewLogger(logging.ComponentCLI)
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug().Str("path", used).Msg("Using config file")
	}

	limiter, err := a.limiter()
	if err != nil {
		return err
	}

	retry := client.DefaultRetryConfig()
	retry.MaxAttempts = a.cfg.MaxAttempts
	retry.InitialBackoff = a.cfg.RetryBackoff

	a.exec, err = client.New(client.Config{
		BaseURL:   a.cfg.BaseURL,
		UserAgent: a.cfg.UserAgent,
		Limiter:   limiter,
		Retry:     retry,
		Timeout:   a.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	a.content = content.New(a.exec)
	a.search = search.New(a.exec, search.Query{})

	if a.cfg.MetricsAddr != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() {
			a.metricsDone <- metrics.Serve(ctx, a.cfg.MetricsAddr)
		}()
	}
	return nil
}

// limiter returns the admission budget for this process. The default
// budget uses the process-wide window.
func (a *app) limiter() (ratelimit.Limiter, error) {
	local := ratelimit.Shared()
	if a.cfg.RateLimit != ratelimit.DefaultMaxPerWindow || a.cfg.RateWindow != ratelimit.DefaultWindow {
		w, err := ratelimit.NewWindow(a.cfg.RateLimit, a.cfg.RateWindow, ratelimit.WithName("cli"))
		if err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		local = w
	}

	if a.cfg.RedisAddr == "" {
		return local, nil
	}

	a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	shared, err := ratelimit.NewRedisWindow(a.redis, "govuk", a.cfg.RateLimit, a.cfg.RateWindow, local, a.logger)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	a.logger.Debug().Str("redis", a.cfg.RedisAddr).Msg("Sharing rate limit through Redis")
	return shared, nil
}

func (a *app) close() error {
	var errs []error
	if a.stopMetrics != nil {
		a.stopMetrics()
		errs = append(errs, <-a.metricsDone)
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
