package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/harjot96/POS/internal/config"
	"github.com/harjot96/POS/internal/logger"
	"github.com/harjot96/POS/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenRepositoryFallsBackToMemory(t *testing.T) {
	repo, closeFn, err := openRepository(t.Context(), config.Config{}, logger.Discard())
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("expected no closer for memory store")
	}
	if _, ok := repo.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", repo)
	}
}

func TestBlobOptionsUsesS3URLForS3Driver(t *testing.T) {
	opts := blobOptions(config.Config{BlobDriver: "s3", BlobBaseURL: "http://local", S3URL: "https://cdn.example.com"})
	if opts.BaseURL != "https://cdn.example.com" {
		t.Fatalf("expected S3 public url, got %q", opts.BaseURL)
	}
}

func TestTokenCommandPrintsToken(t *testing.T) {
	t.Setenv("AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"token", "shop-basic", "--role", "admin"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("token command: %v", err)
	}
	if strings.Count(strings.TrimSpace(out.String()), ".") != 2 {
		t.Fatalf("expected a JWT on stdout, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "expires") {
		t.Fatalf("expected expiry on stderr, got %q", errOut.String())
	}
}
