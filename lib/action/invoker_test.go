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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rexec/lib/config"
	"github.com/gravitational/rexec/lib/moduleloader"
	"github.com/gravitational/rexec/lib/playbook"
	"github.com/gravitational/rexec/lib/shell"
)

func writeTestModule(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestExecuteModulePipelinedNewStyleInvokesInterpreterWithStdin(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "ping.py", "#!/usr/bin/python\n# REXEC_STYLE: new\nPAYLOAD = ##REXEC_MODULE_ARGS##\n")

	conn := newFakeConn(shell.NewPosix(), scriptedResult{RC: 0, Stdout: `{"ping": "pong"}`})
	pc := &playbook.PlayContext{RemoteUser: "deploy", Pipelining: true}
	b := newTestBase(t, conn, pc, nil)
	b.Task.Action = "ping"
	b.Loader = moduleloader.NewLoader(dir)

	res, err := b.ExecuteModule(context.Background(), ExecuteModuleOptions{})
	require.NoError(t, err)
	require.Equal(t, "pong", res["ping"])

	require.Len(t, conn.Commands, 1)
	require.Equal(t, "/usr/bin/python", conn.Commands[0])
	require.Empty(t, conn.Files)
}

func TestExecuteModuleNonPipelinedStagesFileAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "ping.py", "#!/usr/bin/python\n# REXEC_STYLE: new\nPAYLOAD = ##REXEC_MODULE_ARGS##\n")

	conn := newFakeConn(shell.NewPosix(),
		scriptedResult{RC: 0, Stdout: "/home/deploy/.ansible/tmp/ansible-tmp-1-2"}, // mkdtemp
		scriptedResult{RC: 0},                                                     // chmod u+x
		scriptedResult{RC: 0, Stdout: `{"ping": "pong"}`},                         // module invocation + rm
	)
	pc := &playbook.PlayContext{RemoteUser: "deploy", Pipelining: false}
	b := newTestBase(t, conn, pc, nil)
	b.Task.Action = "ping"
	b.Loader = moduleloader.NewLoader(dir)

	res, err := b.ExecuteModule(context.Background(), ExecuteModuleOptions{})
	require.NoError(t, err)
	require.Equal(t, "pong", res["ping"])

	require.Len(t, conn.Files, 1)
	require.Len(t, conn.Commands, 3)
	require.Contains(t, conn.Commands[1], "chmod")
	require.Contains(t, conn.Commands[2], "ansible-tmp-1-2")
	require.Contains(t, conn.Commands[2], "rm ")
}

func TestExecuteModuleCheckModeUnsupportedErrors(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "command.py", "#!/usr/bin/python\n# REXEC_STYLE: new\nPAYLOAD = ##REXEC_MODULE_ARGS##\n")

	conn := newFakeConn(shell.NewPosix())
	pc := &playbook.PlayContext{RemoteUser: "deploy", CheckMode: true}
	b := newTestBase(t, conn, pc, nil)
	b.Task.Action = "command"
	b.Loader = moduleloader.NewLoader(dir)
	b.SupportsCheckMode = false

	_, err := b.ExecuteModule(context.Background(), ExecuteModuleOptions{})
	require.Error(t, err)
	require.Empty(t, conn.Commands)
}

func TestExecuteModulePersistFilesSuppressesCleanup(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "ping.py", "#!/usr/bin/python\n# REXEC_STYLE: new\nPAYLOAD = ##REXEC_MODULE_ARGS##\n")

	conn := newFakeConn(shell.NewPosix(),
		scriptedResult{RC: 0, Stdout: "/home/deploy/.ansible/tmp/ansible-tmp-1-2"},
		scriptedResult{RC: 0},
		scriptedResult{RC: 0, Stdout: `{"ping": "pong"}`},
	)
	pc := &playbook.PlayContext{RemoteUser: "deploy", Pipelining: false}
	b := newTestBase(t, conn, pc, nil)
	b.Task.Action = "ping"
	b.Loader = moduleloader.NewLoader(dir)

	_, err := b.ExecuteModule(context.Background(), ExecuteModuleOptions{PersistFiles: true})
	require.NoError(t, err)

	require.Len(t, conn.Commands, 3)
	require.NotContains(t, conn.Commands[2], "rm ")
}

func TestExecuteModuleBecomeNonRootCleansUpInSecondPass(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "ping.py", "#!/usr/bin/python\n# REXEC_STYLE: new\nPAYLOAD = ##REXEC_MODULE_ARGS##\n")

	conn := newFakeConn(shell.NewPosix(),
		scriptedResult{RC: 0, Stdout: "/tmp/ansible-tmp-1-2"}, // mkdtemp
		scriptedResult{RC: 0},                                 // chown to the become user
		scriptedResult{RC: 0},                                 // chmod u+x
		scriptedResult{RC: 0, Stdout: `{"ping": "pong"}`},     // module invocation, no inline rm
		scriptedResult{RC: 0},                                 // second-pass rm under connecting user
	)
	pc := &playbook.PlayContext{RemoteUser: "deploy", Pipelining: false, Become: true, BecomeUser: "appuser", BecomeMethod: "sudo"}
	b := newTestBase(t, conn, pc, nil)
	b.Task.Action = "ping"
	b.Loader = moduleloader.NewLoader(dir)

	res, err := b.ExecuteModule(context.Background(), ExecuteModuleOptions{})
	require.NoError(t, err)
	require.Equal(t, "pong", res["ping"])

	require.Len(t, conn.Commands, 5)
	require.NotContains(t, conn.Commands[3], "rm ")
	require.Contains(t, conn.Commands[4], "rm ")
	require.Contains(t, conn.Commands[4], "ansible-tmp-1-2")
}

func TestExecuteModuleOldStyleBecomeRootWritesQuotedArgsFile(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "command.py", "#!/bin/sh\n# REXEC_STYLE: old\necho hi\n")

	conn := newFakeConn(shell.NewPosix(),
		scriptedResult{RC: 0, Stdout: "/tmp/ansible-tmp-1-2"}, // mkdtemp
		scriptedResult{RC: 0},                                 // chmod u+x
		scriptedResult{RC: 0, Stdout: `{"changed": true}`},    // module invocation + inline rm
	)
	pc := &playbook.PlayContext{RemoteUser: "deploy", Pipelining: false, Become: true, BecomeUser: "root", BecomeMethod: "sudo"}
	b := newTestBase(t, conn, pc, nil)
	b.Task.Action = "command"
	b.Task.Args = map[string]any{"msg": "$(whoami)"}
	b.Loader = moduleloader.NewLoader(dir)

	res, err := b.ExecuteModule(context.Background(), ExecuteModuleOptions{})
	require.NoError(t, err)
	require.Equal(t, true, res["changed"])

	require.Len(t, conn.Commands, 3)
	require.Contains(t, conn.Commands[1], "chmod")
	require.Contains(t, conn.Commands[2], "ansible-tmp-1-2")
	require.Contains(t, conn.Commands[2], "rm ")

	require.Len(t, conn.Files, 2)
	argsFile, ok := conn.Files["/tmp/ansible-tmp-1-2/args"]
	require.True(t, ok)
	// pipes.quote() neutralizes the command substitution, and the
	// whole quoted value is then wrapped in a second, literal pair of
	// double quotes, matching the old-style args-file convention.
	require.Contains(t, string(argsFile), `msg="'$(whoami)'"`)
}

func TestExecuteModuleMissingModuleErrors(t *testing.T) {
	dir := t.TempDir()
	conn := newFakeConn(shell.NewPosix())
	b := newTestBase(t, conn, nil, nil)
	b.Task.Action = "nonexistent"
	b.Loader = moduleloader.NewLoader(dir)

	_, err := b.ExecuteModule(context.Background(), ExecuteModuleOptions{})
	require.Error(t, err)
}

func TestLateNeedsTmpPathFalseForPipelinedNewStyle(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	pc := &playbook.PlayContext{Pipelining: true}
	b := newTestBase(t, conn, pc, nil)

	require.False(t, b.lateNeedsTmpPath("", moduleloader.StyleNew))
}

func TestLateNeedsTmpPathTrueForOldStyleEvenWithPipelining(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	pc := &playbook.PlayContext{Pipelining: true}
	b := newTestBase(t, conn, pc, nil)

	require.True(t, b.lateNeedsTmpPath("", moduleloader.StyleOld))
}

func TestLateNeedsTmpPathFalseWhenAlreadyResolved(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	b := newTestBase(t, conn, nil, nil)

	require.False(t, b.lateNeedsTmpPath("/tmp/ansible-tmp-1-2", moduleloader.StyleNew))
}
