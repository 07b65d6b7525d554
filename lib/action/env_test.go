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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rexec/lib/shell"
)

func TestComputeEnvironmentStringSingleMapping(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	b := newTestBase(t, conn, nil, nil)
	b.Task.Environment = map[string]any{"FOO": "bar"}

	out, err := b.computeEnvironmentString()
	require.NoError(t, err)
	require.Contains(t, out, "FOO=bar")
}

func TestComputeEnvironmentStringLastMappingWins(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	b := newTestBase(t, conn, nil, nil)
	b.Task.Environment = []any{
		map[string]any{"FOO": "first"},
		map[string]any{"FOO": "second"},
	}

	out, err := b.computeEnvironmentString()
	require.NoError(t, err)
	require.Contains(t, out, "FOO=second")
	require.NotContains(t, out, "FOO=first")
}

func TestComputeEnvironmentStringRejectsNonMapping(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	b := newTestBase(t, conn, nil, nil)
	b.Task.Environment = "not a mapping"

	_, err := b.computeEnvironmentString()
	require.Error(t, err)
}

func TestComputeEnvironmentStringEmptyWhenUnset(t *testing.T) {
	conn := newFakeConn(shell.NewPosix())
	b := newTestBase(t, conn, nil, nil)

	out, err := b.computeEnvironmentString()
	require.NoError(t, err)
	require.Equal(t, "", out)
}
