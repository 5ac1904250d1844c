package render

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"welcome.html":        {Data: []byte(`<h1>Welcome, {{ name }}!</h1><p>Your code is {{ code | upcase }}.</p>`)},
		"broken.html":         {Data: []byte(`{% if name %}unterminated`)},
		"emails/receipt.html": {Data: []byte(`<p>Total: {{ total }}</p>`)},
	}
}

func TestLiquidRenderer_Render(t *testing.T) {
	r := NewLiquidRenderer(testFiles())

	tests := []struct {
		name     string
		template string
		vars     map[string]any
		want     string
	}{
		{
			name:     "variables and filters",
			template: "welcome.html",
			vars:     map[string]any{"name": "Ada", "code": "abc"},
			want:     "<h1>Welcome, Ada!</h1><p>Your code is ABC.</p>",
		},
		{
			name:     "missing variables render empty",
			template: "welcome.html",
			vars:     nil,
			want:     "<h1>Welcome, !</h1><p>Your code is .</p>",
		},
		{
			name:     "nested path",
			template: "emails/receipt.html",
			vars:     map[string]any{"total": 42},
			want:     "<p>Total: 42</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(context.Background(), tt.template, tt.vars)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLiquidRenderer_Errors(t *testing.T) {
	r := NewLiquidRenderer(testFiles())

	tests := []struct {
		name         string
		template     string
		wantNotFound bool
	}{
		{name: "unknown template", template: "missing.html", wantNotFound: true},
		{name: "empty name", template: "", wantNotFound: true},
		{name: "path traversal", template: "../secrets.txt", wantNotFound: true},
		{name: "syntax error", template: "broken.html", wantNotFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(context.Background(), tt.template, nil)
			if err == nil {
				t.Fatal("Render() expected error, got nil")
			}
			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("Render() error %T is not *render.Error", err)
			}
			if rerr.Template != tt.template {
				t.Errorf("Error.Template = %q, want %q", rerr.Template, tt.template)
			}
			if got := errors.Is(err, ErrTemplateNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(err, ErrTemplateNotFound) = %v, want %v", got, tt.wantNotFound)
			}
		})
	}
}

func TestLiquidRenderer_CacheAndInvalidate(t *testing.T) {
	files := testFiles()
	r := NewLiquidRenderer(files)
	ctx := context.Background()

	first, err := r.Render(ctx, "emails/receipt.html", map[string]any{"total": 1})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	files["emails/receipt.html"] = &fstest.MapFile{Data: []byte(`Sum {{ total }}`)}
	cached, _ := r.Render(ctx, "emails/receipt.html", map[string]any{"total": 1})
	if cached != first {
		t.Errorf("cached Render() = %q, want %q", cached, first)
	}

	r.Invalidate("emails/receipt.html")
	fresh, _ := r.Render(ctx, "emails/receipt.html", map[string]any{"total": 1})
	if fresh != "Sum 1" {
		t.Errorf("Render() after Invalidate = %q, want %q", fresh, "Sum 1")
	}
}

func TestLiquidRenderer_CancelledContext(t *testing.T) {
	r := NewLiquidRenderer(testFiles())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Render(ctx, "welcome.html", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Template: "x.html", Err: ErrTemplateNotFound}
	if got := err.Error(); got != `render template "x.html": template not found` {
		t.Errorf("Error() = %q", got)
	}
}
