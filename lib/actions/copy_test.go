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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rexec/lib/shell"
)

func TestCopyRequiresDest(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	base := newActionBase(t, conn, "copy", map[string]any{"content": "hi"}, map[string]string{"stat.py": newStyleStub})

	c := NewCopy(base)
	_, err := c.Run(context.Background(), "/tmp/ansible-tmp-1-2", nil)
	require.Error(t, err)
}

func TestCopyRequiresSrcOrContent(t *testing.T) {
	conn := newFakeConn(shell.NewPosix(), scriptedResult{RC: 0, Stdout: `{"stat": {"exists": false}}`})
	base := newActionBase(t, conn, "copy", map[string]any{"dest": "/etc/app.conf"}, map[string]string{"stat.py": newStyleStub})

	c := NewCopy(base)
	_, err := c.Run(context.Background(), "/tmp/ansible-tmp-1-2", nil)
	require.Error(t, err)
}

func TestCopySkipsWhenChecksumsMatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	// sha1("hello") = aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d
	conn := newFakeConn(shell.NewPosix(), scriptedResult{
		RC:     0,
		Stdout: `{"stat": {"exists": true, "isdir": false, "checksum": "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"}}`,
	})
	base := newActionBase(t, conn, "copy", map[string]any{"src": src, "dest": "/etc/app.conf"}, map[string]string{"stat.py": newStyleStub})

	c := NewCopy(base)
	res, err := c.Run(context.Background(), "/tmp/ansible-tmp-1-2", nil)
	require.NoError(t, err)
	require.Equal(t, false, res["changed"])
	require.Empty(t, conn.Files)
}

func TestCopyTransfersWhenChecksumsDiffer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	conn := newFakeConn(shell.NewPosix(),
		scriptedResult{RC: 0, Stdout: `{"stat": {"exists": false}}`},
		scriptedResult{RC: 0, Stdout: `{"changed": true, "dest": "/etc/app.conf"}`},
	)
	base := newActionBase(t, conn, "copy", map[string]any{"src": src, "dest": "/etc/app.conf"}, map[string]string{"stat.py": newStyleStub})

	c := NewCopy(base)
	res, err := c.Run(context.Background(), "/tmp/ansible-tmp-1-2", nil)
	require.NoError(t, err)
	require.Equal(t, true, res["changed"])
	require.Len(t, conn.Files, 1)
	require.Contains(t, res["checksum"], "aaf4c61d")
}

func TestCopyStagesInlineContent(t *testing.T) {
	conn := newFakeConn(shell.NewPosix(),
		scriptedResult{RC: 0, Stdout: `{"stat": {"exists": false}}`},
		scriptedResult{RC: 0, Stdout: `{"changed": true}`},
	)
	base := newActionBase(t, conn, "copy", map[string]any{"content": "hello", "dest": "/etc/app.conf"}, map[string]string{"stat.py": newStyleStub})

	c := NewCopy(base)
	res, err := c.Run(context.Background(), "/tmp/ansible-tmp-1-2", nil)
	require.NoError(t, err)
	require.Equal(t, true, res["changed"])
	require.Len(t, conn.Files, 1)
}

func TestCopyForceTransfersEvenWhenChecksumsMatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	conn := newFakeConn(shell.NewPosix(),
		scriptedResult{RC: 0, Stdout: `{"stat": {"exists": true, "isdir": false, "checksum": "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"}}`},
		scriptedResult{RC: 0, Stdout: `{"changed": true}`},
	)
	base := newActionBase(t, conn, "copy", map[string]any{"src": src, "dest": "/etc/app.conf", "force": true}, map[string]string{"stat.py": newStyleStub})

	c := NewCopy(base)
	res, err := c.Run(context.Background(), "/tmp/ansible-tmp-1-2", nil)
	require.NoError(t, err)
	require.Equal(t, true, res["changed"])
	require.Len(t, conn.Files, 1)
}
