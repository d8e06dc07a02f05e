package store

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/marmos91/storesweep/internal/logger"
)

// ExecStore drives the store control binary. Queries run as the invoking
// user; mutations go through the privileged session.
//
// Command surface:
//
//	<bin> query --dead
//	<bin> query --referrers-closure <path>
//	<bin> resolve <name>
//	<bin> delete <path>...
//	<bin> gc
//
// Stdout is parsed as newline-delimited paths; stderr is folded into the
// returned error.
type ExecStore struct {
	bin     string
	session *Session
	timeout time.Duration

	// run is swapped out by tests.
	run func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// NewExecStore creates a store client for the given control binary.
func NewExecStore(bin string, session *Session) *ExecStore {
	return &ExecStore{
		bin:     bin,
		session: session,
		run:     execRun,
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// SetCommandTimeout bounds every control command invocation. Zero means no
// limit.
func (s *ExecStore) SetCommandTimeout(d time.Duration) {
	s.timeout = d
}

// command runs the control binary, elevated when privileged, and returns
// its stdout.
func (s *ExecStore) command(ctx context.Context, privileged bool, args ...string) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := s.bin
	argv := args

	if privileged {
		if err := s.session.Acquire(ctx); err != nil {
			return nil, err
		}
		name, argv = s.session.Wrap(s.bin, args)
	}

	logger.Debug("running store command", "cmd", name, "args", strings.Join(argv, " "))

	stdout, stderr, err := s.run(ctx, name, argv...)
	if err != nil {
		return nil, &CommandError{
			Cmd:    strings.Join(append([]string{name}, argv...), " "),
			Stderr: string(stderr),
			Err:    err,
		}
	}

	return stdout, nil
}

// QueryDead implements LivenessOracle.
func (s *ExecStore) QueryDead(ctx context.Context) ([]string, error) {
	out, err := s.command(ctx, true, "query", "--dead")
	if err != nil {
		return nil, err
	}
	return parseLines(out), nil
}

// ReferrersClosure implements LivenessOracle.
func (s *ExecStore) ReferrersClosure(ctx context.Context, path string) ([]string, error) {
	out, err := s.command(ctx, false, "query", "--referrers-closure", path)
	if err != nil {
		return nil, err
	}
	return parseLines(out), nil
}

// Delete implements Deleter. Paths are passed as one argv batch; the caller
// decides batch sizes.
func (s *ExecStore) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := s.command(ctx, true, append([]string{"delete"}, paths...)...)
	return err
}

// Resolve implements PackageResolver. The control binary prints the store
// path of the named package, or nothing when the name is unknown.
func (s *ExecStore) Resolve(ctx context.Context, name string) (string, error) {
	out, err := s.command(ctx, false, "resolve", name)
	if err != nil {
		return "", err
	}

	lines := parseLines(out)
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], nil
}

// CollectGarbage implements Compactor.
func (s *ExecStore) CollectGarbage(ctx context.Context) error {
	_, err := s.command(ctx, true, "gc")
	return err
}

// parseLines splits command output into trimmed non-empty lines.
func parseLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
