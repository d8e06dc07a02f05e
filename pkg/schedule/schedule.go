// Package schedule manages the cron entry that runs unattended sweeps. It
// owns exactly one line of the invoking user's crontab, tagged with a
// marker comment; every other line passes through untouched.
package schedule

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/marmos91/storesweep/internal/logger"
)

// marker tags the crontab line this package owns.
const marker = "# managed by storesweep"

// DefaultSchedule runs the sweep nightly at 03:00, when store activity is
// usually lowest.
const DefaultSchedule = "0 3 * * *"

// Entry is one scheduled invocation.
type Entry struct {
	// Schedule is a five-field cron expression.
	Schedule string `json:"schedule" yaml:"schedule"`

	// Command is the full command line to run.
	Command string `json:"command" yaml:"command"`
}

// Line renders the crontab line for the entry, marker included.
func (e Entry) Line() string {
	return fmt.Sprintf("%s %s %s", e.Schedule, e.Command, marker)
}

// Validate checks the entry is well-formed enough to install. Full cron
// expression semantics are cron's business; this only catches entries that
// would corrupt the crontab line format.
func (e Entry) Validate() error {
	if strings.Count(strings.TrimSpace(e.Schedule), " ") != 4 {
		return fmt.Errorf("invalid cron schedule %q: expected five fields", e.Schedule)
	}
	if strings.TrimSpace(e.Command) == "" {
		return fmt.Errorf("schedule entry has no command")
	}
	if strings.ContainsAny(e.Schedule+e.Command, "\n") {
		return fmt.Errorf("schedule entry must be a single line")
	}
	return nil
}

// Registrar manages the scheduled sweep entry.
type Registrar interface {
	// Install replaces any existing managed entry with the given one.
	Install(ctx context.Context, entry Entry) error

	// Remove deletes the managed entry, reporting whether one existed.
	Remove(ctx context.Context) (bool, error)

	// Current returns the installed managed entry, or nil.
	Current(ctx context.Context) (*Entry, error)
}

// Crontab implements Registrar over the user's crontab via the crontab
// binary. It never needs elevation: the sweep command it installs does its
// own privilege handling at run time.
type Crontab struct {
	// run is swapped out by tests.
	run func(ctx context.Context, stdin string, args ...string) (stdout, stderr []byte, err error)
}

// NewCrontab returns a Registrar over the invoking user's crontab.
func NewCrontab() *Crontab {
	return &Crontab{run: crontabRun}
}

func crontabRun(ctx context.Context, stdin string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, "crontab", args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// current reads the crontab as lines. A missing crontab is an empty one,
// not an error: crontab -l exits non-zero with a "no crontab for" message
// when the user has never had one.
func (c *Crontab) current(ctx context.Context) ([]string, error) {
	stdout, stderr, err := c.run(ctx, "", "-l")
	if err != nil {
		if strings.Contains(string(stderr), "no crontab") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read crontab: %v: %s", err, strings.TrimSpace(string(stderr)))
	}

	var lines []string
	for _, line := range strings.Split(strings.TrimRight(string(stdout), "\n"), "\n") {
		if line != "" || len(lines) > 0 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// write replaces the whole crontab.
func (c *Crontab) write(ctx context.Context, lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}

	_, stderr, err := c.run(ctx, content, "-")
	if err != nil {
		return fmt.Errorf("failed to write crontab: %v: %s", err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Install implements Registrar.
func (c *Crontab) Install(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	lines, err := c.current(ctx)
	if err != nil {
		return err
	}

	kept := dropManaged(lines)
	kept = append(kept, entry.Line())

	if err := c.write(ctx, kept); err != nil {
		return err
	}

	logger.Info("schedule: installed cron entry", "schedule", entry.Schedule, "command", entry.Command)
	return nil
}

// Remove implements Registrar.
func (c *Crontab) Remove(ctx context.Context) (bool, error) {
	lines, err := c.current(ctx)
	if err != nil {
		return false, err
	}

	kept := dropManaged(lines)
	if len(kept) == len(lines) {
		return false, nil
	}

	if err := c.write(ctx, kept); err != nil {
		return false, err
	}

	logger.Info("schedule: removed cron entry")
	return true, nil
}

// Current implements Registrar.
func (c *Crontab) Current(ctx context.Context) (*Entry, error) {
	lines, err := c.current(ctx)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if entry, ok := parseManaged(line); ok {
			return &entry, nil
		}
	}
	return nil, nil
}

// dropManaged filters out lines this package owns.
func dropManaged(lines []string) []string {
	var kept []string
	for _, line := range lines {
		if _, ok := parseManaged(line); !ok {
			kept = append(kept, line)
		}
	}
	return kept
}

// parseManaged splits a managed crontab line back into an Entry. The
// schedule is the first five fields; everything up to the marker is the
// command.
func parseManaged(line string) (Entry, bool) {
	if !strings.HasSuffix(strings.TrimSpace(line), marker) {
		return Entry{}, false
	}

	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), marker))
	fields := strings.Fields(body)
	if len(fields) < 6 {
		return Entry{}, false
	}

	return Entry{
		Schedule: strings.Join(fields[:5], " "),
		Command:  strings.Join(fields[5:], " "),
	}, true
}
