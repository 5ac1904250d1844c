package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultOutputDir = "./mail_output"

// File writes every message as an .eml file in a directory instead of
// sending it. Intended for development; every message is reported as sent.
type File struct {
	outputDir string
}

// NewFile creates a File transport writing to dir, or ./mail_output when
// dir is empty.
func NewFile(dir string) *File {
	if dir == "" {
		dir = defaultOutputDir
	}
	return &File{outputDir: dir}
}

func (f *File) GetName() string { return "file" }

// Send writes the composed message to <timestamp>_<message-id>.eml in the
// output directory.
func (f *File) Send(_ context.Context, msg *Message) (*Result, error) {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return nil, &Error{Provider: "file", Op: "create output dir", Err: err}
	}

	now := time.Now()
	raw, err := Compose(msg, now)
	if err != nil {
		return nil, &Error{Provider: "file", Op: "compose", Err: err}
	}

	safeID := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(msg.ID)
	filename := fmt.Sprintf("%s_%s.eml", now.Format("20060102_150405.000000"), safeID)
	path := filepath.Join(f.outputDir, filename)

	if err := os.WriteFile(path, raw, 0o640); err != nil {
		return nil, &Error{Provider: "file", Op: "write " + path, Err: err}
	}

	res := sent("file-" + msg.ID)
	res.Metadata = map[string]string{"path": path}
	return res, nil
}

// HealthCheck verifies the output directory is writable.
func (f *File) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return fmt.Errorf("file: output dir not writable: %w", err)
	}
	return nil
}
