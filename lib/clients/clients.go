// Package clients defines the contract shared by every platform client
// (Albert, Brightspace, Gradescope): how a client authenticates, where its
// session state lives, and what an export operation owes its caller.
//
// Note on the Headless option:
//   - Authenticate defaults to headed (Headless=false) because first-time
//     login commonly needs an interactive step (MFA approval, manually typed
//     credentials) that cannot be scripted. Headed operations may prompt the
//     operator on the terminal.
//   - Export operations default to headless (Headless=true): once a session
//     exists they are routine and should never block on a prompt. A headless
//     operation that would need operator input fails instead.
//
// The split is deliberate and part of the contract; implementations must not
// collapse the two defaults into one.
package clients

import "context"

// Credentials are supplied by the caller per invocation. The core never
// persists them anywhere except the opaque session state artifact.
type Credentials struct {
	Username string
	Password string
}

type AuthOptions struct {
	// Headless disables all terminal interaction during login.
	Headless bool
}

type ExportOptions struct {
	// Headless disables all terminal interaction during the export.
	Headless bool
}

func DefaultAuthOptions() AuthOptions {
	return AuthOptions{Headless: false}
}

func DefaultExportOptions() ExportOptions {
	return ExportOptions{Headless: true}
}

// Client is the minimal surface every platform integration implements.
// Export operations are platform-specific methods shaped
//
//	(ctx context.Context, ..., saveDir string, opts ExportOptions) ([]string, error)
//
// returning the ordered list of file paths written under saveDir. An export
// either writes every file it reports or returns an error; it never returns
// a partial list. Success is "returns nil", failure is a non-nil error from
// the taxonomy in this package. An empty list is only ever legitimate when
// the platform genuinely had nothing to export.
type Client interface {
	// Platform is a stable lowercase identifier ("albert", "gradescope", ...)
	// used in error messages, session file names and the export ledger.
	Platform() string

	// Authenticate logs in and persists the session state artifact on
	// success. On failure it returns *AuthError and leaves any prior
	// artifact untouched.
	Authenticate(ctx context.Context, creds Credentials, opts AuthOptions) error

	// AuthStatePath is where this client persists its session state.
	AuthStatePath() string
}
