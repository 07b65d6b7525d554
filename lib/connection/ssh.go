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
	"sync"

	"github.com/gravitational/trace"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	rexecshell "github.com/gravitational/rexec/lib/shell"
)

// SSH is the accelerated-free SSH transport: one ssh.Client shared across
// every ExecCommand/PutFile call for the lifetime of the executor, built
// directly on golang.org/x/crypto/ssh with no extra pooling layer.
type SSH struct {
	client     *ssh.Client
	sh         rexecshell.Shell
	pipelining bool
	executable string
}

// NewSSH wraps an already-dialed *ssh.Client. pipelining reports whether
// this connection supports stdin-based module delivery (most OpenSSH
// servers do).
func NewSSH(client *ssh.Client, sh rexecshell.Shell, pipelining bool) *SSH {
	return &SSH{client: client, sh: sh, pipelining: pipelining}
}

func (s *SSH) Transport() string { return "ssh" }

func (s *SSH) ModuleImplementationPreferences() []string {
	if s.sh.Family() == rexecshell.FamilyPowerShell {
		return []string{".ps1"}
	}
	return []string{".py", ""}
}

func (s *SSH) HasPipelining() bool   { return s.pipelining }
func (s *SSH) AllowExecutable() bool { return false }
func (s *SSH) Shell() rexecshell.Shell { return s.sh }

// PutFile copies localPath to remotePath over SFTP.
func (s *SSH) PutFile(ctx context.Context, localPath, remotePath string) error {
	sftpClient, err := sftp.NewClient(s.client)
	if err != nil {
		return trace.ConnectionProblem(err, "failed to start sftp subsystem")
	}
	defer sftpClient.Close()

	local, err := openLocal(localPath)
	if err != nil {
		return trace.Wrap(err)
	}
	defer local.Close()

	remote, err := sftpClient.Create(remotePath)
	if err != nil {
		return trace.ConnectionProblem(err, "failed to create remote file %s", remotePath)
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		return trace.ConnectionProblem(err, "failed to copy %s to %s", localPath, remotePath)
	}
	return nil
}

// ExecCommand opens a session, wires inData to stdin when present, drains
// stdout/stderr concurrently, and maps the session's exit status into the
// (rc, stdout, stderr) triple the core expects.
func (s *SSH) ExecCommand(ctx context.Context, cmd string, inData []byte, sudoable bool) (*Result, error) {
	if cmd == "" {
		return &Result{RC: 254}, nil
	}

	session, err := s.client.NewSession()
	if err != nil {
		return nil, trace.ConnectionProblem(err, "failed to open ssh session")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if inData != nil {
		session.Stdin = bytes.NewReader(inData)
	}

	done := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		wg.Wait()
		return nil, trace.ConnectionProblem(ctx.Err(), "command cancelled: %s", cmd)
	case runErr := <-done:
		wg.Wait()
		rc, err := exitCodeFromSSHError(runErr)
		if err != nil {
			return nil, trace.ConnectionProblem(err, "ssh command failed: %s", cmd)
		}
		return &Result{RC: rc, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
	}
}

func exitCodeFromSSHError(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitStatus(), nil
	}
	var missing *ssh.ExitMissingError
	if ok := asExitMissingError(err, &missing); ok {
		// The remote process was killed by a signal rather than exiting
		// normally; 255 mirrors OpenSSH's own convention for "unknown
		// failure" used throughout the core's rc==255 diagnostics.
		return 255, nil
	}
	return 0, err
}

func asExitError(err error, target **ssh.ExitError) bool {
	if e, ok := err.(*ssh.ExitError); ok {
		*target = e
		return true
	}
	return false
}

func asExitMissingError(err error, target **ssh.ExitMissingError) bool {
	if e, ok := err.(*ssh.ExitMissingError); ok {
		*target = e
		return true
	}
	return false
}

func openLocal(path string) (*os.File, error) {
	return os.Open(path)
}
