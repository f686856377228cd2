package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindCommand runs an external program.
const KindCommand = "command"

// Command runs argv and fails when the program exits with a non-zero status.
// The scheduler waits for the program to finish before building dependents.
type Command struct {
	name   string
	argv   []string
	dir    string
	stdout io.Writer
	stderr io.Writer
}

// NewCommand creates a command task. Output goes to the process streams
// unless overridden with SetOutput.
func NewCommand(name string, argv []string, dir string) *Command {
	return &Command{
		name:   name,
		argv:   append([]string(nil), argv...),
		dir:    dir,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func newCommandFromConfig(cfg Config, env Env) (task.Task, error) {
	if len(cfg.Command) == 0 {
		return nil, requireField(cfg, "command", "")
	}
	c := NewCommand(cfg.Name, cfg.Command, cfg.Dir)
	c.SetOutput(env.Stdout, env.Stderr)
	return c, nil
}

// SetOutput redirects the program's output. Nil writers keep the current ones.
func (c *Command) SetOutput(stdout, stderr io.Writer) {
	if stdout != nil {
		c.stdout = stdout
	}
	if stderr != nil {
		c.stderr = stderr
	}
}

func (c *Command) Descriptor() task.Descriptor {
	argv, _ := json.Marshal(c.argv)
	return task.Descriptor{
		Kind:   KindCommand,
		Name:   c.name,
		Params: map[string]string{"argv": string(argv), "dir": c.dir},
	}
}

// Run executes the program. A successful run always counts as a change.
func (c *Command) Run(ctx context.Context) (bool, error) {
	// #nosec G204 - the command line comes from the build file
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Dir = c.dir
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	if err := cmd.Run(); err != nil {
		b := ferrors.WrapError(err, ferrors.CategoryRuntime, "command did not complete successfully").
			WithContext("command", c.argv[0])
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			b = b.WithContext("exit_code", exitErr.ExitCode())
		}
		return false, b.Build()
	}
	return true, nil
}
