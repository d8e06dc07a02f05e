package store

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// Session manages privilege elevation for store operations. The elevation
// command is validated once per invocation (prompting for a password if the
// terminal needs one) and the result is cached; every privileged command
// then runs non-interactively so a worker goroutine can never stall on a
// hidden prompt.
type Session struct {
	elevate string

	mu        sync.Mutex
	validated bool

	// validate is swapped out by tests.
	validate func(ctx context.Context) error
}

// NewSession returns a session using the given elevation command, typically
// "sudo". An empty command disables elevation entirely: commands run as the
// invoking user and Acquire is a no-op.
func NewSession(elevate string) *Session {
	s := &Session{elevate: elevate}
	s.validate = s.validateInteractive
	return s
}

// Acquire validates the elevation command, interactively if needed.
// Success is cached for the lifetime of the session. Failure is fatal to
// the run: there is no point starting a sweep that cannot delete.
func (s *Session) Acquire(ctx context.Context) error {
	if s.elevate == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.validated {
		return nil
	}

	if err := s.validate(ctx); err != nil {
		return fmt.Errorf("failed to acquire %s session: %w", s.elevate, err)
	}

	s.validated = true
	return nil
}

func (s *Session) validateInteractive(ctx context.Context) error {
	// sudo -v refreshes the cached credential without running anything,
	// prompting on the controlling terminal when required.
	cmd := exec.CommandContext(ctx, s.elevate, "-v")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Wrap prefixes argv with the elevation command. The -n flag keeps the
// elevated call non-interactive; the credential was cached by Acquire.
func (s *Session) Wrap(name string, args []string) (string, []string) {
	if s.elevate == "" {
		return name, args
	}
	return s.elevate, append([]string{"-n", name}, args...)
}
