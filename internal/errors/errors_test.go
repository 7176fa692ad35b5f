package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSessionExpiredError(t *testing.T) {
	err := NewSessionExpiredError("login form returned")
	expected := "session expired: login form returned"

	if err.Error() != expected {
		t.Errorf("expected %q but got %q", expected, err.Error())
	}
}

func TestFetchErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{"with source and cause", NewFetchError("portal", "page 2", errors.New("timeout")), "fetch error [portal]: page 2: timeout"},
		{"without source", NewFetchError("", "decode", nil), "fetch error: decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("expected %q but got %q", tt.want, got)
			}
		})
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	session := NewSessionExpiredError("401")
	wrapped := fmt.Errorf("refresh: %w", NewFetchError("portal", "page 1", session))

	if !IsFetchError(wrapped) {
		t.Error("expected IsFetchError to find the wrapped FetchError")
	}
	if !IsSessionExpired(wrapped) {
		t.Error("expected IsSessionExpired to find the session error in the chain")
	}
	if IsLoginFailed(wrapped) {
		t.Error("expected IsLoginFailed to return false")
	}
}

func TestIsLoginFailed(t *testing.T) {
	loginErr := NewLoginFailedError("captcha", nil)
	if !IsLoginFailed(loginErr) {
		t.Error("expected IsLoginFailed to return true for LoginFailedError")
	}

	otherErr := NewSessionExpiredError("test")
	if IsLoginFailed(otherErr) {
		t.Error("expected IsLoginFailed to return false for non-LoginFailedError")
	}
}

func TestConfigError(t *testing.T) {
	cause := errors.New("bad duration")
	err := NewConfigError("REFRESH_INTERVAL", "invalid value", cause)

	if !IsConfigError(fmt.Errorf("load: %w", err)) {
		t.Error("expected IsConfigError to return true")
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if want := "config REFRESH_INTERVAL: invalid value: bad duration"; err.Error() != want {
		t.Errorf("expected %q but got %q", want, err.Error())
	}
}
