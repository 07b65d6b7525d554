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

	"github.com/gravitational/rexec/lib/shell"
)

// fixupPerms makes files staged at remotePath readable (and, when execute
// is set, executable) by the effective module-executing identity. It is a
// no-op for PowerShell targets (caller has no analog) and for a nil path.
func (b *Base) fixupPerms(ctx context.Context, remotePath, remoteUser string, execute, recursive bool) error {
	if b.Connection.Shell().Family() == shell.FamilyPowerShell {
		return nil
	}
	if remotePath == "" {
		b.debug("fixup_perms called with remote_path empty", nil)
		return nil
	}

	if b.PlayContext.Become && b.PlayContext.BecomeUser != "root" && b.PlayContext.BecomeUser != remoteUser {
		return b.fixupPermsBecomeOther(ctx, remotePath, remoteUser, execute, recursive)
	}

	if execute {
		res, err := b.remoteChmod(ctx, "u+x", remotePath, recursive)
		if err != nil {
			return err
		}
		if res.RC != 0 {
			return ExecutionError("failed to set file mode on remote files (rc: %d, err: %s)", res.RC, res.Stderr)
		}
	}
	return nil
}

func (b *Base) fixupPermsBecomeOther(ctx context.Context, remotePath, remoteUser string, execute, recursive bool) error {
	becomeUser := b.PlayContext.BecomeUser

	chownRes, err := b.remoteChown(ctx, remotePath, becomeUser, "", recursive)
	if err != nil {
		return err
	}

	if chownRes.RC == 0 {
		// chown succeeded, so the connecting user apparently has root
		// privileges. Root can read files regardless of the read bit but
		// still needs the execute bit set to run them.
		if execute {
			res, err := b.remoteChmod(ctx, "u+x", remotePath, recursive)
			if err != nil {
				return err
			}
			if res.RC != 0 {
				return ExecutionError("failed to set file mode on remote temporary files (rc: %d, err: %s)", res.RC, res.Stderr)
			}
		}
		return nil
	}

	if remoteUser == "root" {
		return ExecutionError("failed to change ownership of the temporary files rexec needs to create despite connecting as root; unprivileged become user would be unable to read the file")
	}

	mode := "rX"
	if execute {
		mode = "rx"
	}
	faclRes, err := b.remoteSetUserFACL(ctx, remotePath, becomeUser, mode, recursive)
	if err != nil {
		return err
	}
	if faclRes.RC == 0 {
		return nil
	}

	if !b.Config.AllowWorldReadableTmpfiles {
		return PermissionError("failed to set permissions on the temporary files rexec needs to create when becoming an unprivileged user; to work around this set allow_world_readable_tmpfiles")
	}

	b.warn("using world-readable permissions for temporary files when becoming an unprivileged user, which may be insecure", map[string]interface{}{"path": remotePath})
	chmodRes, err := b.remoteChmod(ctx, "a+"+mode, remotePath, recursive)
	if err != nil {
		return err
	}
	if chmodRes.RC != 0 {
		return ExecutionError("failed to set file mode on remote files (rc: %d, err: %s)", chmodRes.RC, chmodRes.Stderr)
	}
	return nil
}

func (b *Base) remoteChmod(ctx context.Context, mode, path string, recursive bool) (*LowLevelResult, error) {
	cmd := b.Connection.Shell().Chmod(mode, path, recursive)
	return b.LowLevelExecuteCommand(ctx, cmd, false, nil, "")
}

func (b *Base) remoteChown(ctx context.Context, path, user, group string, recursive bool) (*LowLevelResult, error) {
	cmd := b.Connection.Shell().Chown(path, user, group, recursive)
	return b.LowLevelExecuteCommand(ctx, cmd, false, nil, "")
}

func (b *Base) remoteSetUserFACL(ctx context.Context, path, user, mode string, recursive bool) (*LowLevelResult, error) {
	cmd := b.Connection.Shell().SetUserFACL(path, user, mode, recursive)
	return b.LowLevelExecuteCommand(ctx, cmd, false, nil, "")
}
