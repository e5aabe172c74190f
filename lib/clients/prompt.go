package clients

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Prompter supplies operator input during headed authentication: a missing
// username or password, or an MFA passcode. Headless operations never call
// a Prompter; they fail with *AuthError instead.
type Prompter interface {
	Prompt(ctx context.Context, label string) (string, error)
}

// PromptCredentials collects a username and password interactively.
func PromptCredentials(ctx context.Context, p Prompter, platform string) (Credentials, error) {
	username, err := p.Prompt(ctx, fmt.Sprintf("%s username", platform))
	if err != nil {
		return Credentials{}, err
	}
	password, err := p.Prompt(ctx, fmt.Sprintf("%s password", platform))
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: username, Password: password}, nil
}

// TerminalPrompter reads responses line by line from stdin.
type TerminalPrompter struct{}

func (TerminalPrompter) Prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimRight(res.line, "\r\n"), nil
	}
}
