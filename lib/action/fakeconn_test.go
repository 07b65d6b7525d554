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

package action

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gravitational/rexec/lib/connection"
	"github.com/gravitational/rexec/lib/shell"
)

// scriptedResult is one canned (rc, stdout, stderr) triple a fakeConn
// returns for a single ExecCommand call, matched in call order.
type scriptedResult struct {
	RC     int
	Stdout string
	Stderr string
	Err    error
}

// fakeConn is an in-memory stand-in for connection.Connection, grounded on
// the same "script the wire, assert on the calls" style used throughout
// the corpus's transport test doubles. It never touches a real process or
// network socket.
type fakeConn struct {
	mu sync.Mutex

	sh          shell.Shell
	prefs       []string
	pipelining  bool
	executable  bool
	transport   string

	script    []scriptedResult
	callIndex int

	Commands []string
	Files    map[string][]byte
}

func newFakeConn(sh shell.Shell, script ...scriptedResult) *fakeConn {
	return &fakeConn{
		sh:         sh,
		prefs:      []string{".py", ""},
		pipelining: true,
		transport:  "fake",
		script:     script,
		Files:      map[string][]byte{},
	}
}

func (f *fakeConn) Transport() string                          { return f.transport }
func (f *fakeConn) ModuleImplementationPreferences() []string  { return f.prefs }
func (f *fakeConn) HasPipelining() bool                        { return f.pipelining }
func (f *fakeConn) AllowExecutable() bool                      { return f.executable }
func (f *fakeConn) Shell() shell.Shell                         { return f.sh }

// PutFile reads localPath's content immediately (the caller's scratch file
// is typically removed right after this returns) so tests can assert on
// what was actually staged, not just which paths were touched.
func (f *fakeConn) PutFile(ctx context.Context, localPath, remotePath string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files[remotePath] = content
	return nil
}

func (f *fakeConn) ExecCommand(ctx context.Context, cmd string, inData []byte, sudoable bool) (*connection.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, cmd)
	if f.callIndex >= len(f.script) {
		return nil, fmt.Errorf("fakeConn: unexpected call %d for command %q", f.callIndex, cmd)
	}
	r := f.script[f.callIndex]
	f.callIndex++
	if r.Err != nil {
		return nil, r.Err
	}
	return &connection.Result{RC: r.RC, Stdout: []byte(r.Stdout), Stderr: []byte(r.Stderr)}, nil
}
