package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/data-power-io/gdxgrab/internal/gdx"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

var envVars = []string{
	"GDX_HOST",
	"GDX_PATH",
	"GDX_YEAR",
	"GDX_MANIFEST_PATH",
	"GDX_HTTP_TIMEOUT",
	"GDX_RATE_LIMIT",
	"GDX_USER_AGENT",
	"GDX_LOG_LEVEL",
	"GDX_LOG_FORMAT",
	"GDX_METRICS_FILE",
	"GDX_S3_ENDPOINT",
	"GDX_S3_ACCESS_KEY_ID",
	"GDX_S3_SECRET_ACCESS_KEY",
	"GDX_S3_BUCKET",
	"GDX_S3_PREFIX",
	"GDX_S3_USE_SSL",
	"GDX_S3_REGION",
}

// Env holds settings read from a .env file and the process environment.
// Process environment wins over the file.
type Env struct {
	values map[string]string
}

// LoadEnv reads envFile (if it exists) and then the process environment.
func LoadEnv(envFile string) (*Env, error) {
	env := &Env{values: make(map[string]string)}

	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: reading %s: %v", gdx.ErrConfiguration, envFile, err)
		}
		for _, k := range envVars {
			if v := fileValues[k]; v != "" {
				env.values[k] = v
			}
		}
	}

	for _, k := range envVars {
		if v := os.Getenv(k); v != "" {
			env.values[k] = v
		}
	}
	return env, nil
}

// NewEnv builds an Env from explicit values.
func NewEnv(values map[string]string) *Env {
	env := &Env{values: make(map[string]string, len(values))}
	for k, v := range values {
		env.values[k] = v
	}
	return env
}

func (e *Env) GetString(key, defaultValue string) string {
	if value, exists := e.values[key]; exists {
		return value
	}
	return defaultValue
}

func (e *Env) GetInt(key string, defaultValue int) int {
	if value, exists := e.values[key]; exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e *Env) GetBool(key string, defaultValue bool) bool {
	if value, exists := e.values[key]; exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (e *Env) GetFloat(key string, defaultValue float64) float64 {
	if value, exists := e.values[key]; exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (e *Env) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := e.values[key]; exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// S3Config describes the optional mirror bucket.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	UseSSL          bool
	Region          string
}

// Enabled reports whether a mirror bucket is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Validate checks that an enabled mirror has everything it needs.
func (c S3Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	required := map[string]string{
		"GDX_S3_ENDPOINT":          c.Endpoint,
		"GDX_S3_ACCESS_KEY_ID":     c.AccessKeyID,
		"GDX_S3_SECRET_ACCESS_KEY": c.SecretAccessKey,
	}
	for _, key := range []string{"GDX_S3_ENDPOINT", "GDX_S3_ACCESS_KEY_ID", "GDX_S3_SECRET_ACCESS_KEY"} {
		if required[key] == "" {
			return fmt.Errorf("%w: required field '%s' is missing or empty", gdx.ErrConfiguration, key)
		}
	}
	return nil
}

// Config is the single description of one gdxgrab invocation.
type Config struct {
	Download bool
	Filelist bool
	Health   bool

	Host         string
	GDXPath      string
	Year         int
	Archive      bool
	Override     bool
	Start        time.Time
	End          time.Time
	ManifestPath string

	HTTPTimeout time.Duration
	RateLimit   float64
	UserAgent   string

	LogLevel    string
	LogFormat   string
	MetricsFile string

	S3 S3Config
}

// GrabberConfig projects the download settings.
func (c *Config) GrabberConfig() gdx.Config {
	return gdx.Config{
		Host:      c.Host,
		GDXPath:   c.GDXPath,
		StartYear: c.Year,
		Archive:   c.Archive,
		Override:  c.Override,
	}
}

// FetcherConfig projects the HTTP settings.
func (c *Config) FetcherConfig() gdx.FetcherConfig {
	return gdx.FetcherConfig{
		Timeout:   c.HTTPTimeout,
		RateLimit: c.RateLimit,
		UserAgent: c.UserAgent,
	}
}

// Range is the inclusive manifest date range.
func (c *Config) Range() gdx.DateRange {
	return gdx.DateRange{Start: c.Start, End: c.End}
}

type rawFlags struct {
	start string
	end   string
}

func newFlagSet(cfg *Config, raw *rawFlags, env *Env, now time.Time) *flag.FlagSet {
	fs := flag.NewFlagSet("gdxgrab", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&cfg.Download, "download", false, "download mode")
	fs.BoolVar(&cfg.Download, "d", false, "download mode (shorthand)")
	fs.BoolVar(&cfg.Filelist, "filelist", false, "filelist mode")
	fs.BoolVar(&cfg.Filelist, "f", false, "filelist mode (shorthand)")

	fs.StringVar(&cfg.Host, "gdx-host", env.GetString("GDX_HOST", gdx.DefaultHost), "archive host URL")
	fs.StringVar(&cfg.GDXPath, "gdx-path", env.GetString("GDX_PATH", "."), "path for archive zip downloads and the extraction dir")
	fs.IntVar(&cfg.Year, "year", env.GetInt("GDX_YEAR", now.Year()), "first year for archive mode")
	fs.BoolVar(&cfg.Archive, "archive", false, "download every yearly archive since --year, then the current month")
	fs.BoolVar(&cfg.Override, "override", false, "re-download yearly archive zips that already exist")

	defStart := fmt.Sprintf("%d-01-01", now.Year()-1)
	defEnd := fmt.Sprintf("%d-12-31", now.Year()-1)
	fs.StringVar(&raw.start, "start", defStart, "first date for FileNameList.inc (YYYY[-MM[-DD]])")
	fs.StringVar(&raw.start, "s", defStart, "first date (shorthand)")
	fs.StringVar(&raw.end, "end", defEnd, "last date for FileNameList.inc (YYYY[-MM[-DD]])")
	fs.StringVar(&raw.end, "e", defEnd, "last date (shorthand)")
	fs.StringVar(&cfg.ManifestPath, "manifest", env.GetString("GDX_MANIFEST_PATH", gdx.ManifestFileName), "manifest output path")

	fs.DurationVar(&cfg.HTTPTimeout, "timeout", env.GetDuration("GDX_HTTP_TIMEOUT", gdx.DefaultTimeout), "per-request timeout")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", env.GetFloat("GDX_RATE_LIMIT", 4), "maximum requests per second, 0 for unlimited")
	fs.StringVar(&cfg.LogLevel, "log-level", env.GetString("GDX_LOG_LEVEL", "info"), "log level")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", env.GetString("GDX_METRICS_FILE", ""), "write Prometheus metrics to this textfile on exit")
	return fs
}

// Usage writes the flag help text.
func Usage(w io.Writer) {
	var cfg Config
	var raw rawFlags
	fs := newFlagSet(&cfg, &raw, NewEnv(nil), time.Now())
	fs.SetOutput(w)
	fmt.Fprintln(w, "usage: gdxgrab [health] (-d | -f) [flags]")
	fs.PrintDefaults()
}

// Parse builds the Config for args. A leading "health" argument selects the
// connectivity check and lifts the download/filelist requirement.
func Parse(args []string, env *Env, now time.Time) (*Config, error) {
	cfg := &Config{}
	if len(args) > 0 && args[0] == "health" {
		cfg.Health = true
		args = args[1:]
	}

	var raw rawFlags
	fs := newFlagSet(cfg, &raw, env, now)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", gdx.ErrConfiguration, err)
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%w: unexpected positional arguments: %q", gdx.ErrConfiguration, strings.Join(fs.Args(), " "))
	}

	var err error
	if cfg.Start, err = ParseDate(raw.start, false); err != nil {
		return nil, fmt.Errorf("%w: --start: %v", gdx.ErrConfiguration, err)
	}
	if cfg.End, err = ParseDate(raw.end, true); err != nil {
		return nil, fmt.Errorf("%w: --end: %v", gdx.ErrConfiguration, err)
	}

	cfg.UserAgent = env.GetString("GDX_USER_AGENT", "gdxgrab/1.0")
	cfg.LogFormat = env.GetString("GDX_LOG_FORMAT", "console")
	cfg.S3 = S3Config{
		Endpoint:        env.GetString("GDX_S3_ENDPOINT", ""),
		AccessKeyID:     env.GetString("GDX_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetString("GDX_S3_SECRET_ACCESS_KEY", ""),
		Bucket:          env.GetString("GDX_S3_BUCKET", ""),
		Prefix:          env.GetString("GDX_S3_PREFIX", "gdx"),
		UseSSL:          env.GetBool("GDX_S3_USE_SSL", true),
		Region:          env.GetString("GDX_S3_REGION", "us-east-1"),
	}

	if err := cfg.Validate(now); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces mode exclusivity and value ranges.
func (c *Config) Validate(now time.Time) error {
	if !c.Health {
		switch {
		case c.Download && c.Filelist:
			return fmt.Errorf("%w: --download and --filelist are mutually exclusive", gdx.ErrConfiguration)
		case !c.Download && !c.Filelist:
			return fmt.Errorf("%w: one of --download or --filelist is required", gdx.ErrConfiguration)
		}
	}
	if c.Year < 1900 || c.Year > now.Year() {
		return fmt.Errorf("%w: --year %d out of range 1900..%d", gdx.ErrConfiguration, c.Year, now.Year())
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: --timeout must be positive", gdx.ErrConfiguration)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: --rate-limit must not be negative", gdx.ErrConfiguration)
	}
	if strings.TrimSpace(c.GDXPath) == "" {
		return fmt.Errorf("%w: --gdx-path is required", gdx.ErrConfiguration)
	}
	return c.S3.Validate()
}

// ParseDate accepts YYYY, YYYY-MM or YYYY-MM-DD. Partial dates expand to the
// first day of the period, or the last day when end is true.
func ParseDate(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case len("2006"):
		t, err := time.Parse("2006", s)
		if err != nil {
			return time.Time{}, err
		}
		if end {
			return t.AddDate(1, 0, -1), nil
		}
		return t, nil
	case len("2006-01"):
		t, err := time.Parse("2006-01", s)
		if err != nil {
			return time.Time{}, err
		}
		if end {
			return t.AddDate(0, 1, -1), nil
		}
		return t, nil
	default:
		return time.Parse("2006-01-02", s)
	}
}
