package browser

import (
	"testing"

	"civicmon/internal/errors"
)

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name        string
		resp        FetchResponse
		wantBody    string
		wantSession bool
		wantErr     bool
	}{
		{"json ok", FetchResponse{Status: 200, ContentType: "application/json", Body: `{"data":[]}`}, `{"data":[]}`, false, false},
		{"unauthorized", FetchResponse{Status: 401}, "", true, true},
		{"csrf expired", FetchResponse{Status: 419}, "", true, true},
		{"server error", FetchResponse{Status: 500, Body: "oops"}, "", false, true},
		{"login page by content type", FetchResponse{Status: 200, ContentType: "text/html; charset=UTF-8", Body: "<!DOCTYPE html>"}, "", true, true},
		{"login page without content type", FetchResponse{Status: 200, Body: "\n  <html>"}, "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := CheckResponse(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v but got %v", tt.wantErr, err)
			}
			if errors.IsSessionExpired(err) != tt.wantSession {
				t.Errorf("expected session expired=%v but got %v", tt.wantSession, err)
			}
			if string(body) != tt.wantBody {
				t.Errorf("expected body %q but got %q", tt.wantBody, body)
			}
		})
	}
}
