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
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const tmpPathMode = 0o700

// makeTmpPath creates and returns a temporary directory on the remote
// host, named ansible-tmp-<unix-time>-<rand48> with mode 0700. It uses the
// system-wide scratch area instead of the user's home whenever become is
// active and the become-user is neither root nor the connecting user —
// this keeps a non-root SSH user from creating a directory only root can
// read.
func (b *Base) makeTmpPath(ctx context.Context, remoteUser string) (string, error) {
	basefile := fmt.Sprintf("ansible-tmp-%d-%d", time.Now().Unix(), rand48())

	useSystemTmp := b.PlayContext.Become &&
		b.PlayContext.BecomeUser != "root" &&
		b.PlayContext.BecomeUser != remoteUser

	cmd := b.Connection.Shell().Mkdtemp(basefile, useSystemTmp, tmpPathMode)
	res, err := b.LowLevelExecuteCommand(ctx, cmd, false, nil, "")
	if err != nil {
		return "", err
	}

	if res.RC != 0 {
		return "", tmpPathError(cmd, res, b.Connection.Transport(), b.PlayContext.Verbosity)
	}

	lines := splitLines(res.Stdout)
	rc := "/"
	if len(lines) > 0 {
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.TrimSpace(lines[i]) != "" {
				rc = strings.TrimSpace(lines[i])
				break
			}
		}
	}

	if rc == "/" {
		return "", ExecutionError("failed to resolve remote temporary directory from %s: `%s` returned empty string", basefile, cmd)
	}

	return rc, nil
}

func tmpPathError(cmd string, res *LowLevelResult, transport string, verbosity int) error {
	var output string
	switch {
	case res.RC == 5:
		output = "Authentication failure."
	case res.RC == 255 && transport == "ssh":
		if verbosity > 3 {
			output = fmt.Sprintf("SSH encountered an unknown error. The output was:\n%s%s", res.Stdout, res.Stderr)
		} else {
			output = "SSH encountered an unknown error during the connection. We recommend you re-run the command using -vvvv, which will enable SSH debugging output to help diagnose the issue"
		}
	case strings.Contains(res.Stderr, "No space left on device"):
		output = res.Stderr
	default:
		output = fmt.Sprintf(
			"Authentication or permission failure. In some cases, you may have been able to authenticate and did not have permissions on the remote directory. Consider changing the remote temp path to a path rooted in \"/tmp\". Failed command was: %s, exited with result %d",
			cmd, res.RC,
		)
	}
	if res.Stdout != "" {
		output = output + ": " + res.Stdout
	}
	return ConnectionFailure(nil, output)
}

// removeTmpPath deletes a tmp path previously created by makeTmpPath. It is
// a silent no-op unless the path contains "-tmp-", cleanup hasn't been
// suppressed, and DEFAULT_KEEP_REMOTE_FILES is false. Failures are
// swallowed: a working transport is needed to clean up, and if it broke,
// the directory simply leaks.
func (b *Base) removeTmpPath(ctx context.Context, tmpPath string) {
	if tmpPath == "" || !b.cleanupRemoteTmp || b.Config.KeepRemoteFiles || !strings.Contains(tmpPath, "-tmp-") {
		return
	}
	cmd := b.Connection.Shell().Remove(tmpPath, true)
	if _, err := b.LowLevelExecuteCommand(ctx, cmd, false, nil, ""); err != nil {
		b.warn("failed to remove remote tmp path", map[string]interface{}{"path": tmpPath, "error": err.Error()})
	}
}

// rand48 returns a cryptographically random 48-bit unsigned integer used
// as the tmp-directory suffix.
func rand48() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:6]); err != nil {
		// crypto/rand failing is effectively unrecoverable system-wide; a
		// zero suffix degrades uniqueness but never panics the executor.
		return 0
	}
	return binary.BigEndian.Uint64(buf[:]) >> 16
}
