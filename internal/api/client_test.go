package api

import (
	"net/http"
	"testing"
	"time"
)

func TestConfigure(t *testing.T) {
	original := GetHTTPClient()
	t.Cleanup(func() { SetHTTPClient(original) })

	tests := []struct {
		name        string
		timeout     time.Duration
		maxConns    int
		wantTimeout time.Duration
		wantConns   int
	}{
		{"explicit values", 5 * time.Second, 4, 5 * time.Second, 4},
		{"defaults for zero", 0, 0, defaultTimeout, defaultMaxConns},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Configure(tt.timeout, tt.maxConns)
			client := GetHTTPClient()
			if client.Timeout != tt.wantTimeout {
				t.Errorf("expected timeout %v but got %v", tt.wantTimeout, client.Timeout)
			}
			transport, ok := client.Transport.(*http.Transport)
			if !ok {
				t.Fatalf("expected *http.Transport but got %T", client.Transport)
			}
			if transport.MaxIdleConnsPerHost != tt.wantConns {
				t.Errorf("expected %d idle conns per host but got %d", tt.wantConns, transport.MaxIdleConnsPerHost)
			}
		})
	}
}
