// Package main provides a demo client that submits one job of every kind to
// the API server and polls each until it finishes.
//
// Usage:
//
//	test-client --to recipient@example.com
//	test-client --url http://localhost:8080 --attachment reports/sample.txt --wait 30s
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type config struct {
	baseURL    string
	to         string
	extra      stringSlice
	template   string
	attachment string
	wait       time.Duration
	interval   time.Duration
}

// stringSlice implements flag.Value for repeatable --bulk flags.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

type receipt struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type status struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type demo struct {
	title string
	path  string
	body  map[string]any
}

func main() {
	cfg := parseFlags()
	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("Mail Jobs Test Client\n")
	fmt.Printf("  Server:     %s\n", cfg.baseURL)
	fmt.Printf("  Recipient:  %s\n", cfg.to)
	fmt.Println()

	failCount := 0
	for i, d := range demos(cfg) {
		printSeparator(fmt.Sprintf("%d. %s", i+1, d.title))
		if err := runDemo(client, cfg, d); err != nil {
			failCount++
			fmt.Printf("FAIL: %v\n", err)
		}
	}

	fmt.Println()
	if failCount > 0 {
		fmt.Printf("%d demo(s) failed\n", failCount)
		os.Exit(1)
	}
	fmt.Println("All demos completed")
}

func parseFlags() config {
	var cfg config

	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "API server base URL")
	flag.StringVar(&cfg.to, "to", "test@example.com", "Recipient email address")
	flag.Var(&cfg.extra, "bulk", "Extra bulk recipient (can be specified multiple times)")
	flag.StringVar(&cfg.template, "template", "welcome.html", "Template name for the templated demo")
	flag.StringVar(&cfg.attachment, "attachment", "sample.txt", "Attachment path relative to the server's attachment store")
	flag.DurationVar(&cfg.wait, "wait", 10*time.Second, "How long to wait for each job")
	flag.DurationVar(&cfg.interval, "interval", 500*time.Millisecond, "Status polling interval")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: test-client [options]\n\n")
		fmt.Fprintf(os.Stderr, "Submits one job of every kind and waits for the results.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	cfg.baseURL = strings.TrimRight(cfg.baseURL, "/")
	return cfg
}

func demos(cfg config) []demo {
	recipients := append([]string{cfg.to}, cfg.extra...)
	if len(cfg.extra) == 0 {
		recipients = append(recipients, "user1@example.com", "user2@example.com")
	}

	return []demo{
		{
			title: "Sending Simple Email",
			path:  "/api/v1/send-email",
			body: map[string]any{
				"recipient_email": cfg.to,
				"subject":         "Test Simple Email",
				"message":         "This is a test email sent through the job queue.",
			},
		},
		{
			title: "Sending HTML Email",
			path:  "/api/v1/send-email",
			body: map[string]any{
				"recipient_email": cfg.to,
				"subject":         "Test HTML Email",
				"message":         "This is a plain text version of the HTML email.",
				"html_message":    "<h2>Test HTML Email</h2><p>This is a <strong>formatted</strong> email.</p>",
			},
		},
		{
			title: "Sending Bulk Email",
			path:  "/api/v1/send-bulk-email",
			body: map[string]any{
				"recipient_list": recipients,
				"subject":        "Test Bulk Email",
				"message":        "This is a bulk test email sent to multiple recipients.",
			},
		},
		{
			title: "Sending Template Email",
			path:  "/api/v1/send-template-email",
			body: map[string]any{
				"recipient_email": cfg.to,
				"subject":         "Welcome to Our Service",
				"template_name":   cfg.template,
				"context":         map[string]any{"name": "John Doe"},
			},
		},
		{
			title: "Sending Email with Attachment",
			path:  "/api/v1/send-email-with-attachment",
			body: map[string]any{
				"recipient_email": cfg.to,
				"subject":         "Test Email with Attachment",
				"message":         "This is a test email with an attachment.",
				"attachment_path": cfg.attachment,
				"filename":        "test-attachment.txt",
			},
		},
	}
}

func runDemo(client *http.Client, cfg config, d demo) error {
	r, err := submit(client, cfg.baseURL+d.path, d.body)
	if err != nil {
		return err
	}
	fmt.Printf("Task ID:     %s\n", r.TaskID)
	fmt.Printf("Task Status: %s\n", r.Status)
	fmt.Printf("Message:     %s\n", r.Message)
	fmt.Println("Waiting for task to complete...")

	st, err := poll(client, cfg, r.TaskID)
	if err != nil {
		return err
	}

	fmt.Printf("Task Completed (%s). Result:\n", st.Status)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, st.Result, "", "    "); err != nil {
		fmt.Println(string(st.Result))
	} else {
		fmt.Println(pretty.String())
	}
	if st.Status == "failed" {
		return fmt.Errorf("job failed: %s", st.Error)
	}
	return nil
}

func submit(client *http.Client, url string, body map[string]any) (*receipt, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("submit rejected with %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var r receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

func poll(client *http.Client, cfg config, id string) (*status, error) {
	deadline := time.Now().Add(cfg.wait)
	url := cfg.baseURL + "/api/v1/email-status/" + id

	for {
		st, err := fetchStatus(client, url)
		if err != nil {
			return nil, err
		}
		if st.Status == "succeeded" || st.Status == "failed" {
			return st, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("job %s still %s after %s", id, st.Status, cfg.wait)
		}
		time.Sleep(cfg.interval)
	}
}

func fetchStatus(client *http.Client, url string) (*status, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status lookup returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var st status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

func printSeparator(title string) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 50))
}
