package clients

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is the precondition failure: an export operation was
// invoked with no live session and no saved session state artifact.
var ErrNotAuthenticated = errors.New("not authenticated and no saved session state")

// AuthError reports rejected credentials or an abandoned interactive step.
type AuthError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed: %s: %s", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Platform, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ExportError reports an export operation that could not retrieve or write
// everything it was asked for. Subject names the course/section/report that
// failed.
type ExportError struct {
	Platform string
	Subject  string
	Err      error
}

func (e *ExportError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: export of %q failed: %s", e.Platform, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: export failed: %s", e.Platform, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NotAuthenticated wraps ErrNotAuthenticated with the platform name so the
// message identifies which client was missing a session.
func NotAuthenticated(platform string) error {
	return fmt.Errorf("%s: %w", platform, ErrNotAuthenticated)
}
