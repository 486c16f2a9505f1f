// Package config loads the bibliodb configuration file.
//
// The file is YAML; JSON is accepted as well. Keys use the same names as the
// consumers look them up with, for example "JsonPaths:Loans".
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingPath is returned by Validate when a collection path is empty.
var ErrMissingPath = errors.New("path is required")

// Config is the whole configuration file.
type Config struct {
	JSONPaths   JSONPaths   `yaml:"JsonPaths"`
	Server      Server      `yaml:"Server"`
	Auth        Auth        `yaml:"Auth"`
	Circulation Circulation `yaml:"Circulation"`
	History     History     `yaml:"History"`
}

// JSONPaths holds the file path of each collection.
type JSONPaths struct {
	Authors   string `yaml:"Authors"`
	Books     string `yaml:"Books"`
	BookItems string `yaml:"BookItems"`
	Patrons   string `yaml:"Patrons"`
	Loans     string `yaml:"Loans"`
}

// All returns the paths in load order.
func (p *JSONPaths) All() []string {
	return []string{p.Authors, p.Books, p.BookItems, p.Patrons, p.Loans}
}

// Validate checks that every collection has a path.
func (p *JSONPaths) Validate() error {
	for _, name := range jsonPathNames {
		if v, _ := p.lookup(name); v == "" {
			return fmt.Errorf("key JsonPaths:%s: %w", name, ErrMissingPath)
		}
	}
	return nil
}

var jsonPathNames = []string{"Authors", "Books", "BookItems", "Patrons", "Loans"}

func (p *JSONPaths) lookup(name string) (string, bool) {
	switch name {
	case "Authors":
		return p.Authors, true
	case "Books":
		return p.Books, true
	case "BookItems":
		return p.BookItems, true
	case "Patrons":
		return p.Patrons, true
	case "Loans":
		return p.Loans, true
	default:
		return "", false
	}
}

func (p *JSONPaths) resolve(dir string) {
	for _, v := range []*string{&p.Authors, &p.Books, &p.BookItems, &p.Patrons, &p.Loans} {
		if *v != "" && !filepath.IsAbs(*v) {
			*v = filepath.Join(dir, *v)
		}
	}
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"Addr"`
	// WriteRequestsPerMinute limits mutating requests per client. 0 means
	// unlimited.
	WriteRequestsPerMinute int `yaml:"WriteRequestsPerMinute"`
	WriteBurst             int `yaml:"WriteBurst"`
}

// Validate checks that rate limit values are non-negative.
func (s *Server) Validate() error {
	if s.WriteRequestsPerMinute < 0 {
		return errors.New("write requests per minute must be non-negative")
	}
	if s.WriteBurst < 0 {
		return errors.New("write burst must be non-negative")
	}
	return nil
}

// Auth configures bearer tokens on mutating API calls. An empty secret
// disables authentication.
type Auth struct {
	JWTSecret string `yaml:"JWTSecret"`
	Issuer    string `yaml:"Issuer"`
}

// Circulation holds the loan and membership rules.
type Circulation struct {
	LoanExtensionDays int `yaml:"LoanExtensionDays"`
	// RenewalWindowDays is how close to expiry a membership must be before it
	// can be renewed.
	RenewalWindowDays int `yaml:"RenewalWindowDays"`
	MembershipYears   int `yaml:"MembershipYears"`
}

// Validate checks that every period is positive.
func (c *Circulation) Validate() error {
	if c.LoanExtensionDays <= 0 {
		return errors.New("loan extension days must be positive")
	}
	if c.RenewalWindowDays <= 0 {
		return errors.New("renewal window days must be positive")
	}
	if c.MembershipYears <= 0 {
		return errors.New("membership years must be positive")
	}
	return nil
}

// History configures git commits of the data files after each save.
type History struct {
	Enabled bool `yaml:"Enabled"`
	// Dir is the repository root. Defaults to the directory of the loans file.
	Dir         string `yaml:"Dir"`
	AuthorName  string `yaml:"AuthorName"`
	AuthorEmail string `yaml:"AuthorEmail"`
}

// Default returns the configuration used when a key is not set.
func Default() *Config {
	return &Config{
		JSONPaths: JSONPaths{
			Authors:   filepath.Join("data", "authors.json"),
			Books:     filepath.Join("data", "books.json"),
			BookItems: filepath.Join("data", "bookitems.json"),
			Patrons:   filepath.Join("data", "patrons.json"),
			Loans:     filepath.Join("data", "loans.json"),
		},
		Server: Server{
			Addr:                   ":8080",
			WriteRequestsPerMinute: 60,
			WriteBurst:             10,
		},
		Auth: Auth{Issuer: "bibliodb"},
		Circulation: Circulation{
			LoanExtensionDays: 14,
			RenewalWindowDays: 30,
			MembershipYears:   1,
		},
		History: History{
			AuthorName:  "bibliodb",
			AuthorEmail: "bibliodb@localhost",
		},
	}
}

// Load reads the configuration at path on top of the defaults.
//
// An empty path returns the defaults relative to the working directory.
// Relative collection paths are resolved against the directory holding the
// file. BIBLIODB_JWT_SECRET overrides Auth:JWTSecret.
func Load(path string) (*Config, error) {
	cfg := Default()
	dir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		dir = filepath.Dir(path)
	}
	cfg.JSONPaths.resolve(dir)
	if cfg.History.Dir == "" {
		cfg.History.Dir = filepath.Dir(cfg.JSONPaths.Loans)
	} else if !filepath.IsAbs(cfg.History.Dir) {
		cfg.History.Dir = filepath.Join(dir, cfg.History.Dir)
	}
	if s := os.Getenv("BIBLIODB_JWT_SECRET"); s != "" {
		cfg.Auth.JWTSecret = s
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.JSONPaths.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Circulation.Validate()
}

// Lookup returns the value for a colon separated key such as
// "JsonPaths:Books" or "Server:Addr".
func (c *Config) Lookup(key string) (string, bool) {
	section, name, ok := strings.Cut(key, ":")
	if !ok {
		return "", false
	}
	switch section {
	case "JsonPaths":
		return c.JSONPaths.lookup(name)
	case "Server":
		switch name {
		case "Addr":
			return c.Server.Addr, true
		case "WriteRequestsPerMinute":
			return strconv.Itoa(c.Server.WriteRequestsPerMinute), true
		case "WriteBurst":
			return strconv.Itoa(c.Server.WriteBurst), true
		}
	case "Auth":
		if name == "Issuer" {
			return c.Auth.Issuer, true
		}
	case "Circulation":
		switch name {
		case "LoanExtensionDays":
			return strconv.Itoa(c.Circulation.LoanExtensionDays), true
		case "RenewalWindowDays":
			return strconv.Itoa(c.Circulation.RenewalWindowDays), true
		case "MembershipYears":
			return strconv.Itoa(c.Circulation.MembershipYears), true
		}
	}
	return "", false
}
