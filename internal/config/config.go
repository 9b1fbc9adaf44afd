// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string

	// DatabaseDSN holds the PostgreSQL connection string. Empty selects the
	// in-memory store.
	DatabaseDSN string

	// Config is the path to the JSON config file.
	Config string

	// JWTSecret signs session tokens.
	JWTSecret string

	// TokenTTL is the lifetime of an issued session token.
	TokenTTL time.Duration

	// StoreTimeout bounds every repository call.
	StoreTimeout time.Duration

	// Retention is how long soft-deleted banks and entries are kept.
	Retention time.Duration

	// CleanerInterval is the period of the soft-delete cleaner.
	CleanerInterval time.Duration

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string
	TLSKey  string

	// AuthRateLimit is the number of register and login requests allowed per
	// client IP per minute. Zero disables the limit.
	AuthRateLimit int

	// LogLevel is the zap logging level.
	LogLevel string
}

// fileOptions mirrors Options in the config file. Durations are strings
// such as "30m" or "720h".
type fileOptions struct {
	Address         string `json:"address"`
	DatabaseDSN     string `json:"database_dsn"`
	JWTSecret       string `json:"jwt_secret"`
	TokenTTL        string `json:"token_ttl"`
	StoreTimeout    string `json:"store_timeout"`
	Retention       string `json:"retention"`
	CleanerInterval string `json:"cleaner_interval"`
	TLSCert         string `json:"tls_cert"`
	TLSKey          string `json:"tls_key"`
	AuthRateLimit   *int   `json:"auth_rate_limit"`
	LogLevel        string `json:"log_level"`
}

// Defaults.
const (
	DefaultAddress         = "localhost:8080"
	DefaultConfigPath      = "config.json"
	DefaultTokenTTL        = 7 * 24 * time.Hour
	DefaultStoreTimeout    = 5 * time.Second
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultCleanerInterval = time.Hour
	DefaultAuthRateLimit   = 20
	DefaultLogLevel        = "info"
)

// Parse reads the process flags, config file and environment.
func Parse() (*Options, error) {
	return parse(os.Args[1:], os.Getenv)
}

// parse resolves options with precedence defaults < config file < flags set
// on the command line < environment.
func parse(args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	fs := flag.NewFlagSet("gophbank", flag.ContinueOnError)
	fs.StringVar(&opts.Address, "a", DefaultAddress, "run on ip:port server")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address; empty runs on the in-memory store")
	fs.StringVar(&opts.Config, "config", DefaultConfigPath, "path to config file")
	fs.StringVar(&opts.Config, "c", DefaultConfigPath, "path to config file (shorthand)")
	fs.StringVar(&opts.JWTSecret, "jwt-secret", "", "secret used to sign session tokens")
	fs.DurationVar(&opts.TokenTTL, "token-ttl", DefaultTokenTTL, "session token lifetime")
	fs.DurationVar(&opts.StoreTimeout, "store-timeout", DefaultStoreTimeout, "timeout of a single store call")
	fs.DurationVar(&opts.Retention, "retention", DefaultRetention, "how long soft-deleted records are kept")
	fs.DurationVar(&opts.CleanerInterval, "cleaner-interval", DefaultCleanerInterval, "soft-delete cleaner period")
	fs.StringVar(&opts.TLSCert, "tls-cert", "", "server certificate (PEM); enables HTTPS with -tls-key")
	fs.StringVar(&opts.TLSKey, "tls-key", "", "server private key (PEM)")
	fs.IntVar(&opts.AuthRateLimit, "auth-rate-limit", DefaultAuthRateLimit, "register/login requests per IP per minute, 0 disables")
	fs.StringVar(&opts.LogLevel, "l", DefaultLogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}
	if opts.Config != "" {
		if err := applyFile(opts, opts.Config, set); err != nil {
			return nil, err
		}
	}

	if v := getenv("SERVER_ADDRESS"); v != "" {
		opts.Address = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		opts.DatabaseDSN = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		opts.JWTSecret = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// applyFile loads the config file at path, if it exists, into opts without
// touching options given explicitly on the command line.
func applyFile(opts *Options, path string, set map[string]bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	var f fileOptions
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	str := func(flagName, v string, dst *string) {
		if v != "" && !set[flagName] {
			*dst = v
		}
	}
	str("a", f.Address, &opts.Address)
	str("d", f.DatabaseDSN, &opts.DatabaseDSN)
	str("jwt-secret", f.JWTSecret, &opts.JWTSecret)
	str("tls-cert", f.TLSCert, &opts.TLSCert)
	str("tls-key", f.TLSKey, &opts.TLSKey)
	str("l", f.LogLevel, &opts.LogLevel)

	durations := []struct {
		flagName, key, v string
		dst              *time.Duration
	}{
		{"token-ttl", "token_ttl", f.TokenTTL, &opts.TokenTTL},
		{"store-timeout", "store_timeout", f.StoreTimeout, &opts.StoreTimeout},
		{"retention", "retention", f.Retention, &opts.Retention},
		{"cleaner-interval", "cleaner_interval", f.CleanerInterval, &opts.CleanerInterval},
	}
	for _, d := range durations {
		if d.v == "" || set[d.flagName] {
			continue
		}
		parsed, err := time.ParseDuration(d.v)
		if err != nil {
			return fmt.Errorf("config file: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	if f.AuthRateLimit != nil && !set["auth-rate-limit"] {
		opts.AuthRateLimit = *f.AuthRateLimit
	}
	return nil
}

func (o *Options) validate() error {
	var problems []string
	if strings.TrimSpace(o.JWTSecret) == "" {
		problems = append(problems, "jwt secret is required (-jwt-secret or JWT_SECRET)")
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		problems = append(problems, "tls-cert and tls-key must be set together")
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"token-ttl", o.TokenTTL},
		{"store-timeout", o.StoreTimeout},
		{"retention", o.Retention},
		{"cleaner-interval", o.CleanerInterval},
	} {
		if d.v <= 0 {
			problems = append(problems, d.name+" must be positive")
		}
	}
	if o.AuthRateLimit < 0 {
		problems = append(problems, "auth-rate-limit must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TLSEnabled reports whether the server should listen with HTTPS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}
