// Package errors provides the typed errors of the civicmon service.
//
// The analytics core never returns errors; these types describe failures
// of the outer layers (complaint sources, the portal session, configuration)
// so callers can pick a recovery strategy with errors.As instead of string
// matching.
package errors

import (
	"errors"
	"fmt"
)

// SessionExpiredError indicates that the portal session has expired and
// needs re-authentication.
//
// This error is returned when:
//   - The portal API answers with the login page instead of JSON
//   - The API responds 401/403
//
// Recovery strategy: Re-login once, then retry the page
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: %s", e.Message)
}

// NewSessionExpiredError creates a new session expired error with context
func NewSessionExpiredError(msg string) *SessionExpiredError {
	return &SessionExpiredError{Message: msg}
}

// LoginFailedError indicates that a portal login attempt failed.
//
// Recovery strategy: Retry with delay, then restart the browser
type LoginFailedError struct {
	Message string
	Err     error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("login failed: %s", e.Message)
}

func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

// NewLoginFailedError creates a new login failed error with context
func NewLoginFailedError(msg string, err error) *LoginFailedError {
	return &LoginFailedError{Message: msg, Err: err}
}

// FetchError wraps a failure to load complaints from a source.
//
// Source names the complaint source ("file", "sqlite", "postgres",
// "portal") so alerts can say where the refresh broke.
type FetchError struct {
	Source  string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	prefix := "fetch error"
	if e.Source != "" {
		prefix = fmt.Sprintf("fetch error [%s]", e.Source)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error for the named source
func NewFetchError(source, msg string, err error) *FetchError {
	return &FetchError{Source: source, Message: msg, Err: err}
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Key     string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error for key
func NewConfigError(key, msg string, err error) *ConfigError {
	return &ConfigError{Key: key, Message: msg, Err: err}
}

// IsLoginFailed reports whether err wraps a LoginFailedError
func IsLoginFailed(err error) bool {
	var target *LoginFailedError
	return errors.As(err, &target)
}

// IsSessionExpired reports whether err wraps a SessionExpiredError
func IsSessionExpired(err error) bool {
	var target *SessionExpiredError
	return errors.As(err, &target)
}

// IsFetchError reports whether err wraps a FetchError
func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

// IsConfigError reports whether err wraps a ConfigError
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
