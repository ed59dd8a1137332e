package pkgsync

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// Installer drives the external package manager process. A non-nil error
// carries the manager's diagnostic output.
type Installer interface {
	Install(ctx context.Context, ids []string) error
	Uninstall(ctx context.Context, ids []string) error
}

// ExecInstaller runs the configured package manager binary (npm by default)
// in the install directory, one invocation per batch.
type ExecInstaller struct {
	Command string
	Dir     string
}

func NewExecInstaller(command, dir string) *ExecInstaller {
	return &ExecInstaller{Command: command, Dir: dir}
}

func (e *ExecInstaller) Install(ctx context.Context, ids []string) error {
	return e.run(ctx, "install", ids)
}

func (e *ExecInstaller) Uninstall(ctx context.Context, ids []string) error {
	return e.run(ctx, "uninstall", ids)
}

func (e *ExecInstaller) run(ctx context.Context, verb string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]string{verb, "--no-audit", "--no-fund", "--save"}, ids...)
	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Dir = e.Dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s %s failed: %s", e.Command, verb, string(out))
	}
	return nil
}
