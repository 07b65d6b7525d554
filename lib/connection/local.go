/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package connection

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/gravitational/rexec/lib/shell"
)

// Local runs commands on the same host the executor runs on, grounded on
// the plain os/exec command-construction idiom used throughout the corpus
// for local subprocess execution (env slice building, *exec.ExitError
// unwrapping for the exit code).
type Local struct {
	sh         shell.Shell
	executable string
}

// NewLocal returns a Local connection using sh for command construction.
// executable is the shell binary used to run assembled command strings
// (defaults to /bin/sh when empty).
func NewLocal(sh shell.Shell, executable string) *Local {
	if executable == "" {
		executable = "/bin/sh"
	}
	return &Local{sh: sh, executable: executable}
}

func (l *Local) Transport() string { return "local" }

func (l *Local) ModuleImplementationPreferences() []string {
	if l.sh.Family() == shell.FamilyPowerShell {
		return []string{".ps1"}
	}
	return []string{".py", ""}
}

func (l *Local) HasPipelining() bool   { return true }
func (l *Local) AllowExecutable() bool { return true }
func (l *Local) Shell() shell.Shell    { return l.sh }

func (l *Local) PutFile(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func (l *Local) ExecCommand(ctx context.Context, cmdline string, inData []byte, sudoable bool) (*Result, error) {
	if cmdline == "" {
		return &Result{RC: 254}, nil
	}

	cmd := exec.CommandContext(ctx, l.executable, "-c", cmdline)
	if inData != nil {
		cmd.Stdin = bytes.NewReader(inData)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	rc := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			rc = exitErr.ExitCode()
		} else {
			return nil, err
		}
	}

	return &Result{RC: rc, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}
