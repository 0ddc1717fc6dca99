// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package config loads the YAML configuration of the mailcheck command
// and turns it into engine, server and logger settings.
//
// Every field is optional; anything left out keeps its default:
//
//	dns:
//	  servers:
//	    - address: 1.1.1.1
//	      name: cloudflare
//	  timeout: 3s
//	  max_retries: 2
//	  transport: udp        # udp, tcp or tcp-tls
//	checks:
//	  timeout: 15s
//	  concurrency: 100
//	  cache_ttl: 5m
//	  selectors: [default, google, s1, s2]
//	  spf_lookup_limit: 10
//	smtp:
//	  port: 25
//	  timeout: 10s
//	  helo_name: checker.example.net
//	engine:
//	  program: ""           # run checks in an external program instead
//	server:
//	  addr: ":8080"
//	store:
//	  path: mailcheck.db
//	log:
//	  level: info
//	  format: text
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"

	"github.com/felixrowen/mail-checker/src/mailcheck"
	"github.com/felixrowen/mail-checker/src/server"
)

// Config is the root of the configuration file.
type Config struct {
	DNS    DNSConfig    `yaml:"dns"`
	Checks ChecksConfig `yaml:"checks"`
	SMTP   SMTPConfig   `yaml:"smtp"`
	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// DNSServer is a nameserver entry.
type DNSServer struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

// DNSConfig controls how lookups are sent.
type DNSConfig struct {
	Servers    []DNSServer   `yaml:"servers"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	EDNS0Size  uint16        `yaml:"edns0_size"`
	Transport  string        `yaml:"transport"`
}

// ChecksConfig controls the SPF, DKIM, DMARC and MX checks.
type ChecksConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	Concurrency    int           `yaml:"concurrency"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	DisableCache   bool          `yaml:"disable_cache"`
	Selectors      []string      `yaml:"selectors"`
	SPFLookupLimit int           `yaml:"spf_lookup_limit"`
}

// SMTPConfig controls the live mail echo probe.
type SMTPConfig struct {
	Port     int           `yaml:"port"`
	Timeout  time.Duration `yaml:"timeout"`
	HeloName string        `yaml:"helo_name"`
}

// EngineConfig selects an external checker program. When Program is
// empty checks run in-process.
type EngineConfig struct {
	Program   string   `yaml:"program"`
	CheckArgs []string `yaml:"check_args"`
	EchoArgs  []string `yaml:"echo_args"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DNS: DNSConfig{
			Servers: []DNSServer{
				{Address: "1.1.1.1", Name: "cloudflare"},
				{Address: "8.8.8.8", Name: "google"},
			},
			Timeout:    3 * time.Second,
			MaxRetries: 2,
			EDNS0Size:  1232,
			Transport:  "udp",
		},
		Checks: ChecksConfig{
			Timeout:        15 * time.Second,
			Concurrency:    100,
			CacheTTL:       5 * time.Minute,
			Selectors:      append([]string(nil), mailcheck.DefaultSelectors...),
			SPFLookupLimit: 10,
		},
		SMTP: SMTPConfig{
			Port:     25,
			Timeout:  10 * time.Second,
			HeloName: "localhost",
		},
		Engine: EngineConfig{
			CheckArgs: []string{"check"},
			EchoArgs:  []string{"echo"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path: "mailcheck.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults and validates the
// result. An empty path returns [Default].
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(raw []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if len(c.DNS.Servers) == 0 && c.Engine.Program == "" {
		return errors.New("config: dns.servers is empty")
	}
	for i, s := range c.DNS.Servers {
		if strings.TrimSpace(s.Address) == "" {
			return fmt.Errorf("config: dns.servers[%d]: address is required", i)
		}
	}
	if c.DNS.Timeout <= 0 {
		return errors.New("config: dns.timeout must be positive")
	}
	if c.DNS.MaxRetries < 0 {
		return errors.New("config: dns.max_retries must not be negative")
	}
	switch c.DNS.Transport {
	case "udp", "tcp", "tcp-tls":
	default:
		return fmt.Errorf("config: dns.transport %q is not one of udp, tcp, tcp-tls", c.DNS.Transport)
	}

	if c.Checks.Timeout <= 0 {
		return errors.New("config: checks.timeout must be positive")
	}
	if c.Checks.Concurrency <= 0 {
		return errors.New("config: checks.concurrency must be positive")
	}
	if c.Checks.SPFLookupLimit <= 0 {
		return errors.New("config: checks.spf_lookup_limit must be positive")
	}
	for i, s := range c.Checks.Selectors {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("config: checks.selectors[%d] is empty", i)
		}
	}

	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("config: smtp.port %d is out of range", c.SMTP.Port)
	}
	if c.SMTP.Timeout <= 0 {
		return errors.New("config: smtp.timeout must be positive")
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server.addr is required")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is not one of debug, release, test", c.Server.Mode)
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("config: store.path is required")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("config: log.level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}

// CheckerOptions maps the configuration to [mailcheck.Option] values.
func (c Config) CheckerOptions(logger *slog.Logger) []mailcheck.Option {
	servers := make([]mailcheck.DNSServer, 0, len(c.DNS.Servers))
	for _, s := range c.DNS.Servers {
		servers = append(servers, mailcheck.DNSServer{Address: s.Address, Name: s.Name})
	}

	opts := []mailcheck.Option{
		mailcheck.WithServers(servers),
		mailcheck.WithTimeout(c.DNS.Timeout),
		mailcheck.WithMaxRetries(c.DNS.MaxRetries),
		mailcheck.WithEDNS0Size(c.DNS.EDNS0Size),
		mailcheck.WithCheckTimeout(c.Checks.Timeout),
		mailcheck.WithConcurrency(c.Checks.Concurrency),
		mailcheck.WithSelectors(c.Checks.Selectors...),
		mailcheck.WithSPFLookupLimit(c.Checks.SPFLookupLimit),
		mailcheck.WithSMTPPort(c.SMTP.Port),
		mailcheck.WithSMTPTimeout(c.SMTP.Timeout),
		mailcheck.WithHeloName(c.SMTP.HeloName),
		mailcheck.WithLogger(logger),
	}

	if c.DNS.Transport != "udp" {
		opts = append(opts, mailcheck.WithDNSClient(&dns.Client{
			Net:     c.DNS.Transport,
			Timeout: c.DNS.Timeout,
		}))
	}

	if c.Checks.DisableCache {
		opts = append(opts, mailcheck.WithCache(nil))
	} else {
		opts = append(opts, mailcheck.WithCacheTTL(c.Checks.CacheTTL))
	}
	return opts
}

// NewEngine returns the engine selected by the configuration: a
// [mailcheck.ProcessEngine] when engine.program is set, otherwise an
// in-process [mailcheck.Checker].
func (c Config) NewEngine(logger *slog.Logger) mailcheck.Engine {
	if c.Engine.Program != "" {
		return mailcheck.NewProcessEngine(c.Engine.Program,
			mailcheck.WithCheckArgs(c.Engine.CheckArgs...),
			mailcheck.WithEchoArgs(c.Engine.EchoArgs...),
			mailcheck.WithProcessLogger(logger),
		)
	}
	return mailcheck.New(c.CheckerOptions(logger)...)
}

// ServerOptions maps the configuration to [server.Option] values.
func (c Config) ServerOptions(logger *slog.Logger) []server.Option {
	return []server.Option{
		server.WithLogger(logger),
		server.WithRequestTimeout(c.Server.RequestTimeout),
		server.WithShutdownTimeout(c.Server.ShutdownTimeout),
	}
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
