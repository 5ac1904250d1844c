// Package main provides a CLI for inspecting jobs directly in the result
// store, without going through the HTTP API.
//
// Usage:
//
//	job-status [--config dir] [--json] <job-id> [job-id...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sungwon/mailjobs/internal/config"
	"github.com/sungwon/mailjobs/internal/job"
	"github.com/sungwon/mailjobs/internal/resultstore"
)

func main() {
	configPath := flag.String("config", "config", "directory containing config.yaml")
	asJSON := flag.Bool("json", false, "print the full job record as JSON")
	timeout := flag.Duration("timeout", 10*time.Second, "store lookup timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: job-status [options] <job-id> [job-id...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints the status and result of queued email jobs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Store.Type == "memory" {
		fmt.Fprintln(os.Stderr, "error: store.type memory is private to the running server; use the HTTP status endpoint")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := resultstore.New(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open result store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	failed := 0
	for _, id := range flag.Args() {
		if err := check(ctx, os.Stdout, store, id, *asJSON); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// check looks up one job and prints it.
func check(ctx context.Context, w io.Writer, store resultstore.Store, id string, asJSON bool) error {
	j, err := store.Get(ctx, id)
	if errors.Is(err, resultstore.ErrNotFound) {
		return errors.New("job not found")
	}
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(j)
	}
	return report(w, j)
}

// report prints a job in a human-readable form.
func report(w io.Writer, j *job.Job) error {
	fmt.Fprintf(w, "\nJob ID:  %s\n", j.ID)
	fmt.Fprintf(w, "Kind:    %s\n", j.Kind)
	fmt.Fprintf(w, "Status:  %s\n", j.Status)
	fmt.Fprintf(w, "Created: %s\n", j.CreatedAt.Format(time.RFC3339))

	if !j.Status.Terminal() {
		fmt.Fprintln(w, "Job is still running...")
		return nil
	}
	if j.FinishedAt != nil {
		fmt.Fprintf(w, "Done:    %s\n", j.FinishedAt.Format(time.RFC3339))
	}
	if j.Status == job.StatusFailed && j.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", j.Error)
	}

	var pretty any
	if err := json.Unmarshal(j.Result, &pretty); err != nil {
		fmt.Fprintf(w, "Result:  %s\n", j.Result)
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	fmt.Fprintf(w, "Result:\n%s\n", out)
	return nil
}
