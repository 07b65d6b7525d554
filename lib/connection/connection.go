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

// Package connection provides the transport capability bundle the action
// core consumes: put_file/exec_command over local, SSH, or (by adding a
// type satisfying Connection) any other transport.
package connection

import (
	"context"

	"github.com/gravitational/rexec/lib/shell"
)

// Result is the raw (rc, stdout, stderr) triple a transport returns. Stdout
// and stderr are always fully drained byte slices; whichever concrete
// Connection does its I/O as a stream must drain it before returning.
type Result struct {
	RC     int
	Stdout []byte
	Stderr []byte
}

// Connection is the capability bundle a transport plugin must expose.
type Connection interface {
	// Transport identifies the transport family ("local", "ssh", ...);
	// used only by the small set of places that must condition on it
	// (the ssh rc==255 diagnostic, the "accelerate" module name check
	// lives in lib/action instead).
	Transport() string

	// ModuleImplementationPreferences lists module suffixes in search
	// order, e.g. [".py", ""] for POSIX targets or [".ps1"] for Windows.
	ModuleImplementationPreferences() []string

	HasPipelining() bool
	AllowExecutable() bool

	Shell() shell.Shell

	PutFile(ctx context.Context, localPath, remotePath string) error

	// ExecCommand runs cmd on the remote side. inData, when non-nil, is
	// piped to the command's stdin (module pipelining). sudoable tells the
	// transport whether this particular command is a candidate for become
	// wrapping — the core has already applied PlayContext.MakeBecomeCmd by
	// the time this is called; transports that need to know (e.g. to size
	// a PTY) can inspect it but must not re-wrap the command themselves.
	ExecCommand(ctx context.Context, cmd string, inData []byte, sudoable bool) (*Result, error)
}
