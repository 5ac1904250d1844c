package transport

import (
	"context"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{name: "default", cfg: Config{}, wantName: "stdout"},
		{name: "stdout", cfg: Config{Type: "stdout"}, wantName: "stdout"},
		{name: "file", cfg: Config{Type: "file", OutputDir: "/tmp/mail"}, wantName: "file"},
		{name: "smtp", cfg: Config{Type: "smtp", SMTPHost: "mail.example.com", SMTPTLS: "implicit"}, wantName: "smtp"},
		{name: "smtp without host", cfg: Config{Type: "smtp"}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "carrier-pigeon"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tr.GetName() != tt.wantName {
				t.Errorf("GetName() = %q, want %q", tr.GetName(), tt.wantName)
			}
			if _, ok := tr.(*Instrumented); !ok {
				t.Errorf("New() returned %T, want *Instrumented", tr)
			}
		})
	}
}
