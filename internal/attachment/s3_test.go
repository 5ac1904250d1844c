package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements the s3API interface for testing.
type mockS3Client struct {
	objects map[string][]byte
	err     error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.objects[*params.Key]
	if !ok {
		return nil, &types.NotFound{Message: stringPtr("not found")}
	}
	size := int64(len(data))
	return &s3.HeadObjectOutput{ContentLength: &size}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{Message: stringPtr(fmt.Sprintf("key %q not found", *params.Key))}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func stringPtr(s string) *string { return &s }

func TestS3Store_ExistsAndOpen(t *testing.T) {
	mock := newMockS3Client()
	mock.objects["attachments/reports/q1.pdf"] = []byte("%PDF-1.4")
	store := NewS3Store(mock, "test-bucket", "attachments/")
	ctx := context.Background()

	for _, path := range []string{"reports/q1.pdf", "/reports/q1.pdf"} {
		ok, err := store.Exists(ctx, path)
		if err != nil || !ok {
			t.Errorf("Exists(%q) = %v, %v; want true", path, ok, err)
		}
	}

	rc, err := store.Open(ctx, "reports/q1.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "%PDF-1.4" {
		t.Errorf("content = %q", got)
	}
}

func TestS3Store_NotFound(t *testing.T) {
	store := NewS3Store(newMockS3Client(), "test-bucket", "")
	ctx := context.Background()

	ok, err := store.Exists(ctx, "missing.pdf")
	if err != nil || ok {
		t.Errorf("Exists missing = %v, %v; want false, nil", ok, err)
	}
	if _, err := store.Open(ctx, "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open missing: got err=%v, want ErrNotFound", err)
	}
}

func TestS3Store_Errors(t *testing.T) {
	mock := newMockS3Client()
	mock.err = errors.New("access denied")
	store := NewS3Store(mock, "test-bucket", "")
	ctx := context.Background()

	if _, err := store.Exists(ctx, "a.txt"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Exists: got err=%v, want wrapped access error", err)
	}
	if _, err := store.Open(ctx, "a.txt"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Open: got err=%v, want wrapped access error", err)
	}
}
