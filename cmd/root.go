package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/enrich-console/internal/bus"
	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/logger"
	"github.com/Ashfaaq98/enrich-console/internal/poller"
)

var (
	cfgFile   string
	dbPath    string
	redisURL  string
	logLevel  string
	logFormat string
	statusURL string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "enrich-console",
	Short: "Terminal console for live IOC enrichment results",
	Long: `Enrich-console follows an IOC enrichment job and renders the provider
verdicts for every extracted indicator as they arrive.

Features:
- Polls the enrichment backend until the job completes
- Worst-verdict aggregation per indicator with a live verdict dashboard
- Verdict, type and search filters with severity ordering
- Rate-limit and authentication warnings from provider errors
- SQLite session history and Redis Streams fan-out of verdict changes`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.enrich-console.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/enrich-console.db", "SQLite database path (empty disables history)")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis connection URL for verdict fan-out (empty disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&statusURL, "status-url", "http://localhost:8000", "Base URL of the enrichment backend")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("status.base_url", rootCmd.PersistentFlags().Lookup("status-url"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".enrich-console")
	}

	viper.SetEnvPrefix("ENRICH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("status.base_url", "http://localhost:8000")
	v.SetDefault("status.timeout", 10*time.Second)
	v.SetDefault("poll.interval", poller.DefaultInterval)
	v.SetDefault("sort.debounce", enrich.DefaultSortDebounce)
	v.SetDefault("database.path", "./data/enrich-console.db")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.stream", bus.DefaultVerdictStream)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "logs/enrich-console.log")
	v.SetDefault("ui.theme", "")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return configFrom(viper.GetViper())
}

func configFrom(v *viper.Viper) Config {
	return Config{
		Status: StatusConfig{
			BaseURL: v.GetString("status.base_url"),
			Timeout: v.GetDuration("status.timeout"),
		},
		Poll: PollConfig{
			Interval: v.GetDuration("poll.interval"),
		},
		Sort: SortConfig{
			Debounce: v.GetDuration("sort.debounce"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Redis: RedisConfig{
			URL:    v.GetString("redis.url"),
			Stream: v.GetString("redis.stream"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
		UI: UIConfig{
			Theme: v.GetString("ui.theme"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	Status   StatusConfig   `mapstructure:"status"`
	Poll     PollConfig     `mapstructure:"poll"`
	Sort     SortConfig     `mapstructure:"sort"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
}

type StatusConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type SortConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Stream string `mapstructure:"stream"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

// newLogger builds the process logger from config, writing to out.
func newLogger(cfg LogConfig, out io.Writer) *logger.Logger {
	return logger.New(logger.Options{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: out,
	})
}

// watchConfig reloads live-tunable keys when the config file changes.
// onTheme runs with the new theme name; callers route it to the UI goroutine.
func watchConfig(log *logger.Logger, onTheme func(string)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg := GetConfig()
		if !log.SetLevelName(cfg.Log.Level) {
			log.WithField("level", cfg.Log.Level).Warn("ignoring invalid log level from config")
		}
		if onTheme != nil && cfg.UI.Theme != "" {
			onTheme(cfg.UI.Theme)
		}
		log.WithFields(logger.Fields{
			"file":  e.Name,
			"level": cfg.Log.Level,
			"theme": cfg.UI.Theme,
		}).Info("configuration reloaded")
	})
	viper.WatchConfig()
}
