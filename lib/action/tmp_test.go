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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rexec/lib/config"
	"github.com/gravitational/rexec/lib/playbook"
	"github.com/gravitational/rexec/lib/shell"
)

func TestMakeTmpPathReturnsResolvedDirectory(t *testing.T) {
	conn := newFakeConn(shell.NewPosix(), scriptedResult{RC: 0, Stdout: "/home/deploy/.ansible/tmp/ansible-tmp-1-2\n"})
	b := newTestBase(t, conn, nil, nil)

	path, err := b.makeTmpPath(context.Background(), "deploy")
	require.NoError(t, err)
	require.Equal(t, "/home/deploy/.ansible/tmp/ansible-tmp-1-2", path)
}

func TestMakeTmpPathUsesSystemTmpWhenBecomingUnprivilegedPeer(t *testing.T) {
	conn := newFakeConn(shell.NewPosix(), scriptedResult{RC: 0, Stdout: "/tmp/ansible-tmp-1-2\n"})
	pc := &playbook.PlayContext{RemoteUser: "deploy", Become: true, BecomeUser: "appuser"}
	b := newTestBase(t, conn, pc, nil)

	_, err := b.makeTmpPath(context.Background(), "deploy")
	require.NoError(t, err)
	require.Contains(t, conn.Commands[0], "/tmp")
}

func TestMakeTmpPathFailsOnNonZeroRC(t *testing.T) {
	conn := newFakeConn(shell.NewPosix(), scriptedResult{RC: 5, Stderr: "auth failed"})
	b := newTestBase(t, conn, nil, nil)

	_, err := b.makeTmpPath(context.Background(), "deploy")
	require.Error(t, err)
}

func TestRemoveTmpPathIsNoOpWhenKeepRemoteFiles(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	b := newTestBase(t, conn, nil, &config.Config{KeepRemoteFiles: true})
	b.cleanupRemoteTmp = true

	b.removeTmpPath(context.Background(), "/tmp/ansible-tmp-1-2")
	require.Empty(t, conn.Commands)
}

func TestRemoveTmpPathRunsRemoveCommand(t *testing.T) {
	conn := newFakeConn(shell.NewPosix(), scriptedResult{RC: 0})
	b := newTestBase(t, conn, nil, nil)
	b.cleanupRemoteTmp = true

	b.removeTmpPath(context.Background(), "/tmp/ansible-tmp-1-2")
	require.Len(t, conn.Commands, 1)
	require.Contains(t, conn.Commands[0], "rm -rf")
}

func TestRand48IsWithin48Bits(t *testing.T) {
	v := rand48()
	require.Less(t, v, uint64(1)<<48)
}
