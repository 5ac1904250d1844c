package transport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFile_Send(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tr := NewFile(dir)

	result, err := tr.Send(context.Background(), &Message{
		ID:       "job/1",
		From:     "sender@example.com",
		To:       []string{"a@example.com"},
		Subject:  "Saved",
		TextBody: "body text",
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !result.Sent() {
		t.Fatalf("expected sent, got %s", result.Status)
	}

	path := result.Metadata["path"]
	if filepath.Dir(path) != dir {
		t.Errorf("path %q not in %q", path, dir)
	}
	if !strings.HasSuffix(path, "_job_1.eml") {
		t.Errorf("path %q does not end with sanitized id", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "Subject: Saved") {
		t.Errorf("file content missing subject:\n%s", data)
	}
}

func TestFile_DefaultDir(t *testing.T) {
	if got := NewFile("").outputDir; got != defaultOutputDir {
		t.Errorf("outputDir = %q, want %q", got, defaultOutputDir)
	}
}

func TestFile_HealthCheck(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if err := NewFile(dir).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
}

func TestFile_HealthCheckNotWritable(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := NewFile(filepath.Join(blocker, "out")).HealthCheck(context.Background()); err == nil {
		t.Error("expected error when output dir is under a regular file")
	}
}
