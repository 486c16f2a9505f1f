package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bibliodb.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
JsonPaths:
  Authors: data/authors.json
  Books: data/books.json
  BookItems: data/bookitems.json
  Patrons: data/patrons.json
  Loans: /srv/library/loans.json
Server:
  Addr: "127.0.0.1:9000"
Circulation:
  LoanExtensionDays: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "authors.json"); cfg.JSONPaths.Authors != want {
		t.Errorf("Expected %s, got %s", want, cfg.JSONPaths.Authors)
	}
	if cfg.JSONPaths.Loans != "/srv/library/loans.json" {
		t.Errorf("absolute path was rewritten: %s", cfg.JSONPaths.Loans)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected addr 127.0.0.1:9000, got %s", cfg.Server.Addr)
	}
	if cfg.Circulation.LoanExtensionDays != 7 {
		t.Errorf("Expected 7 days, got %d", cfg.Circulation.LoanExtensionDays)
	}
	// Defaults survive partial sections.
	if cfg.Circulation.MembershipYears != 1 || cfg.Server.WriteRequestsPerMinute != 60 {
		t.Errorf("defaults lost: %+v %+v", cfg.Circulation, cfg.Server)
	}
	if cfg.History.Dir != "/srv/library" {
		t.Errorf("Expected history dir /srv/library, got %s", cfg.History.Dir)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, `{"JsonPaths": {"Authors": "a.json", "Books": "b.json", "BookItems": "i.json", "Patrons": "p.json", "Loans": "l.json"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if filepath.Base(cfg.JSONPaths.BookItems) != "i.json" {
		t.Errorf("unexpected BookItems path %s", cfg.JSONPaths.BookItems)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "Unknown: 1\n"},
		{"empty path", "JsonPaths:\n  Loans: \"\"\n"},
		{"negative rate", "Server:\n  WriteRequestsPerMinute: -1\n"},
		{"zero extension", "Circulation:\n  LoanExtensionDays: 0\n"},
		{"malformed", "JsonPaths: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.JSONPaths.Patrons != filepath.Join("data", "patrons.json") {
		t.Errorf("unexpected default %s", cfg.JSONPaths.Patrons)
	}
}

func TestLoadSecretFromEnv(t *testing.T) {
	t.Setenv("BIBLIODB_JWT_SECRET", "s3cret")
	cfg, err := Load(writeConfig(t, "Auth:\n  JWTSecret: from-file\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("Expected env secret, got %q", cfg.Auth.JWTSecret)
	}
}

func TestValidateMissingPath(t *testing.T) {
	cfg := Default()
	cfg.JSONPaths.BookItems = ""
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingPath) {
		t.Fatalf("Expected ErrMissingPath, got %v", err)
	}
	if err.Error() != "key JsonPaths:BookItems: path is required" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestLookup(t *testing.T) {
	cfg := Default()
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"JsonPaths:Authors", filepath.Join("data", "authors.json"), true},
		{"JsonPaths:Loans", filepath.Join("data", "loans.json"), true},
		{"Server:Addr", ":8080", true},
		{"Circulation:LoanExtensionDays", "14", true},
		{"Auth:Issuer", "bibliodb", true},
		{"JsonPaths:Unknown", "", false},
		{"NoSection", "", false},
		{"Auth:JWTSecret", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := cfg.Lookup(tt.key)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}
