package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandExecutor launches external processes
type CommandExecutor interface {
	// Run executes the command to completion and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Stream executes the command and passes each output line to onLine
	// until the command exits or ctx is cancelled.
	Stream(ctx context.Context, onLine func(string), name string, args ...string) error
}

// CommandError describes a process that exited unsuccessfully
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecExecutor runs commands with os/exec
type ExecExecutor struct{}

// Run implements CommandExecutor
func (ExecExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, commandError(name, args, output, err)
	}
	return output, nil
}

// Stream implements CommandExecutor
func (ExecExecutor) Stream(ctx context.Context, onLine func(string), name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return commandError(name, args, nil, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		onLine(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return commandError(name, args, nil, err)
	}
	return scanner.Err()
}

func commandError(name string, args []string, output []byte, err error) error {
	ce := &CommandError{
		Command:  strings.TrimSpace(name + " " + firstArg(args)),
		ExitCode: -1,
		Output:   string(output),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
	}
	return ce
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func lastLine(s string) string {
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
