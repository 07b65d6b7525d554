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

package actions

import (
	"context"
	"fmt"
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
}

// fakeConn is a minimal connection.Connection double for exercising the
// concrete action subtypes without a real transport, scripted the same
// way lib/action's own test double is.
type fakeConn struct {
	mu sync.Mutex

	sh    shell.Shell
	index int
	script []scriptedResult

	Commands []string
	Files    map[string]string
}

func newFakeConn(sh shell.Shell, script ...scriptedResult) *fakeConn {
	return &fakeConn{sh: sh, script: script, Files: map[string]string{}}
}

func (f *fakeConn) Transport() string                         { return "fake" }
func (f *fakeConn) ModuleImplementationPreferences() []string { return []string{".py", ""} }
func (f *fakeConn) HasPipelining() bool                       { return true }
func (f *fakeConn) AllowExecutable() bool                     { return false }
func (f *fakeConn) Shell() shell.Shell                        { return f.sh }

func (f *fakeConn) PutFile(ctx context.Context, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files[remotePath] = localPath
	return nil
}

func (f *fakeConn) ExecCommand(ctx context.Context, cmd string, inData []byte, sudoable bool) (*connection.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, cmd)
	if f.index >= len(f.script) {
		return nil, fmt.Errorf("fakeConn: unexpected call %d for command %q", f.index, cmd)
	}
	r := f.script[f.index]
	f.index++
	return &connection.Result{RC: r.RC, Stdout: []byte(r.Stdout), Stderr: []byte(r.Stderr)}, nil
}
