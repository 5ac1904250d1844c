package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/mailjobs/internal/attachment"
	"github.com/sungwon/mailjobs/internal/dispatch"
	"github.com/sungwon/mailjobs/internal/executor"
	"github.com/sungwon/mailjobs/internal/handler"
	"github.com/sungwon/mailjobs/internal/job"
	"github.com/sungwon/mailjobs/internal/queue"
	"github.com/sungwon/mailjobs/internal/render"
	"github.com/sungwon/mailjobs/internal/resultstore"
	"github.com/sungwon/mailjobs/internal/transport"
)

// stubTransport accepts every message except those to rejected addresses.
type stubTransport struct {
	reject map[string]bool
}

func (s *stubTransport) Send(_ context.Context, msg *transport.Message) (*transport.Result, error) {
	if s.reject[msg.To[0]] {
		return &transport.Result{Status: transport.StatusRejected, Reason: "550 rejected"}, nil
	}
	return &transport.Result{Status: transport.StatusSent, ProviderMessageID: msg.ID}, nil
}

func (s *stubTransport) GetName() string                     { return "stub" }
func (s *stubTransport) HealthCheck(_ context.Context) error { return nil }

// stubJobs fails every call with err.
type stubJobs struct{ err error }

func (s stubJobs) SubmitSingle(context.Context, job.SinglePayload) (dispatch.Receipt, error) {
	return dispatch.Receipt{}, s.err
}

func (s stubJobs) SubmitBulk(context.Context, job.BulkPayload) (dispatch.Receipt, error) {
	return dispatch.Receipt{}, s.err
}

func (s stubJobs) SubmitTemplated(context.Context, job.TemplatedPayload) (dispatch.Receipt, error) {
	return dispatch.Receipt{}, s.err
}

func (s stubJobs) SubmitAttachment(context.Context, job.AttachmentPayload) (dispatch.Receipt, error) {
	return dispatch.Receipt{}, s.err
}

func (s stubJobs) GetStatus(context.Context, string) (*job.Job, error) { return nil, s.err }

// newTestServer wires the router to a memory store and queue. When withPool
// is set an executor pool drains the queue in the background.
func newTestServer(t *testing.T, withPool bool) *httptest.Server {
	t.Helper()

	store := resultstore.NewMemoryStore()
	q := queue.NewMemoryQueue(64)
	svc := dispatch.NewService(store, q, zerolog.Nop())

	if withPool {
		templates := fstest.MapFS{
			"welcome.html": {Data: []byte("<h1>Welcome, {{ name }}!</h1>")},
		}
		files := t.TempDir()
		writeFile(t, files, "report.pdf", "%PDF-1.4")
		d := handler.NewDeliverer(
			&stubTransport{reject: map[string]bool{"bad@example.com": true}},
			render.NewLiquidRenderer(templates),
			attachment.NewLocalStore(files),
			"noreply@example.com",
		)
		pool := executor.NewPool(q, store, handler.NewRegistry(d), executor.Config{Count: 2}, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		pool.Start(ctx)
		t.Cleanup(func() {
			cancel()
			_ = pool.Stop(context.Background())
		})
	}

	srv := httptest.NewServer(NewRouter(RouterConfig{Jobs: svc, Store: store, Metrics: true}, zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		q.Close()
	})
	return srv
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, out
}

func getStatus(t *testing.T, srv *httptest.Server, id string) (int, statusResponse) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/v1/email-status/" + id + "/")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	return resp.StatusCode, out
}

// pollTerminal polls the status endpoint until the job finishes.
func pollTerminal(t *testing.T, srv *httptest.Server, id string) statusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, st := getStatus(t, srv, id)
		if code != http.StatusOK {
			t.Fatalf("status code = %d, want 200", code)
		}
		if job.Status(st.Status).Terminal() {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return statusResponse{}
}

func TestSubmitEndpoints_Accepted(t *testing.T) {
	srv := newTestServer(t, false)

	tests := []struct {
		name        string
		path        string
		body        string
		wantMessage string
	}{
		{
			name:        "single",
			path:        "/api/v1/send-email/",
			body:        `{"recipient_email":"user@example.com","subject":"Hi","message":"Hello"}`,
			wantMessage: "Email task has been queued",
		},
		{
			name:        "bulk",
			path:        "/api/v1/send-bulk-email/",
			body:        `{"recipient_list":["a@example.com","b@example.com"],"subject":"Hi","message":"Hello"}`,
			wantMessage: "Bulk email task has been queued for 2 recipients",
		},
		{
			name:        "templated",
			path:        "/api/v1/send-template-email/",
			body:        `{"recipient_email":"user@example.com","subject":"Hi","template_name":"welcome.html","context":{"name":"Ann"}}`,
			wantMessage: "Template email task has been queued",
		},
		{
			name:        "attachment",
			path:        "/api/v1/send-email-with-attachment/",
			body:        `{"recipient_email":"user@example.com","subject":"Hi","message":"See attached","attachment_path":"report.pdf"}`,
			wantMessage: "Email with attachment task has been queued",
		},
		{
			name:        "without trailing slash",
			path:        "/api/v1/send-email",
			body:        `{"recipient_email":"user@example.com","subject":"Hi","message":"Hello"}`,
			wantMessage: "Email task has been queued",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, srv, tt.path, tt.body)
			if resp.StatusCode != http.StatusAccepted {
				t.Fatalf("status = %d, want 202 (body %v)", resp.StatusCode, body)
			}
			if body["status"] != "pending" {
				t.Errorf("status field = %v, want pending", body["status"])
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMessage)
			}
			id, _ := body["task_id"].(string)
			if id == "" {
				t.Fatal("missing task_id")
			}
			if resp.Header.Get("X-Correlation-ID") == "" {
				t.Error("missing X-Correlation-ID header")
			}

			code, st := getStatus(t, srv, id)
			if code != http.StatusOK || st.Status != "pending" || st.Result != nil {
				t.Errorf("fresh status = %d %+v, want 200 pending without result", code, st)
			}
		})
	}
}

func TestSubmitEndpoints_Validation(t *testing.T) {
	srv := newTestServer(t, false)

	tests := []struct {
		name      string
		path      string
		body      string
		wantField string
	}{
		{name: "malformed json", path: "/api/v1/send-email/", body: `{"recipient_email":`},
		{name: "missing recipient", path: "/api/v1/send-email/", body: `{"subject":"Hi","message":"Hello"}`, wantField: "recipient_email"},
		{name: "invalid recipient", path: "/api/v1/send-email/", body: `{"recipient_email":"not-an-email","subject":"Hi","message":"Hello"}`, wantField: "recipient_email"},
		{name: "display name rejected", path: "/api/v1/send-email/", body: `{"recipient_email":"Ann <ann@example.com>","subject":"Hi","message":"Hello"}`, wantField: "recipient_email"},
		{name: "blank message", path: "/api/v1/send-email/", body: `{"recipient_email":"a@example.com","subject":"Hi","message":"  "}`, wantField: "message"},
		{name: "subject too long", path: "/api/v1/send-email/", body: `{"recipient_email":"a@example.com","subject":"` + strings.Repeat("x", 256) + `","message":"Hello"}`, wantField: "subject"},
		{name: "missing recipient list", path: "/api/v1/send-bulk-email/", body: `{"subject":"Hi","message":"Hello"}`, wantField: "recipient_list"},
		{name: "invalid bulk recipient", path: "/api/v1/send-bulk-email/", body: `{"recipient_list":["a@example.com","bad"],"subject":"Hi","message":"Hello"}`, wantField: "recipient_list"},
		{name: "missing template", path: "/api/v1/send-template-email/", body: `{"recipient_email":"a@example.com","subject":"Hi"}`, wantField: "template_name"},
		{name: "missing attachment path", path: "/api/v1/send-email-with-attachment/", body: `{"recipient_email":"a@example.com","subject":"Hi","message":"Hello"}`, wantField: "attachment_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, srv, tt.path, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if tt.wantField == "" {
				if body["error"] != "invalid request body" {
					t.Errorf("error = %v, want invalid request body", body["error"])
				}
				return
			}
			details, _ := body["details"].(map[string]any)
			if _, ok := details[tt.wantField]; !ok {
				t.Errorf("details = %v, want an entry for %s", details, tt.wantField)
			}
		})
	}
}

func TestEmailStatus_NotFound(t *testing.T) {
	srv := newTestServer(t, false)

	code, st := getStatus(t, srv, "00000000-0000-4000-8000-000000000000")
	if code != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", code)
	}
	if st.Status != "NOT_FOUND" || st.Error != "job not found" || st.TaskID != "00000000-0000-4000-8000-000000000000" {
		t.Errorf("response = %+v", st)
	}
}

func TestServiceErrors(t *testing.T) {
	h := NewRouter(RouterConfig{Jobs: stubJobs{err: errors.New("queue closed")}, Store: fakePinger{}}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/send-email/",
		strings.NewReader(`{"recipient_email":"a@example.com","subject":"Hi","message":"Hello"}`))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("submit status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/email-status/abc/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status query = %d, want 500", rec.Code)
	}
}

func TestEndToEnd(t *testing.T) {
	srv := newTestServer(t, true)

	t.Run("single job succeeds", func(t *testing.T) {
		_, body := postJSON(t, srv, "/api/v1/send-email/",
			`{"recipient_email":"user@example.com","subject":"Hello","message":"Hi"}`)
		st := pollTerminal(t, srv, body["task_id"].(string))

		if st.Status != "succeeded" {
			t.Fatalf("status = %s, want succeeded", st.Status)
		}
		var o job.Outcome
		if err := json.Unmarshal(st.Result, &o); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if o.Status != job.OutcomeSuccess || o.Message != "Email sent successfully to user@example.com" {
			t.Errorf("outcome = %+v", o)
		}
	})

	t.Run("bulk job reports partial failure", func(t *testing.T) {
		_, body := postJSON(t, srv, "/api/v1/send-bulk-email/",
			`{"recipient_list":["a@example.com","bad@example.com","c@example.com"],"subject":"S","message":"M"}`)
		st := pollTerminal(t, srv, body["task_id"].(string))

		var b job.BulkOutcome
		if err := json.Unmarshal(st.Result, &b); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if b.Summary != (job.Summary{Total: 3, Success: 2, Failed: 1}) {
			t.Errorf("summary = %+v", b.Summary)
		}
	})

	t.Run("templated and attachment jobs", func(t *testing.T) {
		_, tmpl := postJSON(t, srv, "/api/v1/send-template-email/",
			`{"recipient_email":"user@example.com","subject":"Hi","template_name":"welcome.html","context":{"name":"Ann"}}`)
		_, att := postJSON(t, srv, "/api/v1/send-email-with-attachment/",
			`{"recipient_email":"user@example.com","subject":"Hi","message":"M","attachment_path":"report.pdf"}`)

		for _, id := range []string{tmpl["task_id"].(string), att["task_id"].(string)} {
			st := pollTerminal(t, srv, id)
			var o job.Outcome
			if err := json.Unmarshal(st.Result, &o); err != nil {
				t.Fatalf("unmarshal result: %v", err)
			}
			if o.Status != job.OutcomeSuccess {
				t.Errorf("job %s outcome = %+v", id, o)
			}
		}
	})

	t.Run("terminal reads are identical", func(t *testing.T) {
		_, body := postJSON(t, srv, "/api/v1/send-email/",
			`{"recipient_email":"user@example.com","subject":"Again","message":"Hi"}`)
		id := body["task_id"].(string)
		first := pollTerminal(t, srv, id)
		_, second := getStatus(t, srv, id)
		if string(first.Result) != string(second.Result) || first.Status != second.Status {
			t.Errorf("reads differ: %+v vs %+v", first, second)
		}
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}
