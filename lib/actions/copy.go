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
	"crypto/sha1"
	"encoding/hex"
	"os"

	"github.com/gravitational/rexec/lib/action"
)

// Copy stages a local file (or inline content) to a remote destination. It
// transfers the file itself through Connection.PutFile and then hands off
// to the copy module for the actual move-into-place and permission work,
// mirroring how TRANSFERS_FILES action subtypes avoid doing their own
// privilege-escalated rename.
type Copy struct {
	*action.Base
}

// NewCopy wraps base as a Copy action. Run stages the source file inside
// the tmp directory it is handed and does not create one itself; with an
// empty tmp the file is staged at the relative remote path "source".
func NewCopy(base *action.Base) *Copy {
	return &Copy{Base: base}
}

func (c *Copy) Run(ctx context.Context, tmp string, taskVars map[string]any) (map[string]any, error) {
	args := cloneStringAny(c.Task.Args)

	dest, _ := args["dest"].(string)
	if dest == "" {
		return nil, action.ExecutionError("copy requires a dest argument")
	}

	var localPath string
	var cleanup func()
	if content, ok := args["content"].(string); ok {
		path, done, err := c.stageContent(content)
		if err != nil {
			return nil, err
		}
		localPath = path
		cleanup = done
	} else if src, ok := args["src"].(string); ok {
		localPath = src
	} else {
		return nil, action.ExecutionError("copy requires either src or content")
	}
	if cleanup != nil {
		defer cleanup()
	}

	localSum, err := localChecksum(localPath)
	if err != nil {
		return nil, action.ExecutionError("unable to read source file %s: %v", localPath, err)
	}

	remoteSum, err := c.remoteChecksumPublic(ctx, dest, taskVars)
	if err != nil {
		return nil, err
	}

	force, _ := args["force"].(bool)
	if remoteSum == localSum && !force {
		return map[string]any{"changed": false, "checksum": localSum, "dest": dest}, nil
	}

	remoteTmpFile := c.Connection.Shell().JoinPath(tmp, "source")
	if err := c.transferFilePublic(ctx, localPath, remoteTmpFile); err != nil {
		return nil, action.ExecutionError("failed to transfer file to %s: %v", remoteTmpFile, err)
	}

	newArgs := map[string]any{
		"src":    remoteTmpFile,
		"dest":   dest,
		"mode":   args["mode"],
		"owner":  args["owner"],
		"group":  args["group"],
	}
	result, err := c.ExecuteModule(ctx, action.ExecuteModuleOptions{
		ModuleName: "copy",
		ModuleArgs: newArgs,
		Tmp:        tmp,
		TaskVars:   taskVars,
	})
	if err != nil {
		return nil, err
	}
	out := map[string]any(result)
	out["checksum"] = localSum
	return out, nil
}

func (c *Copy) stageContent(content string) (string, func(), error) {
	f, err := os.CreateTemp("", "rexec-copy-content-")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func localChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// remoteChecksumPublic runs the stat module through ExecuteModule and maps
// its result to a checksum or sentinel ("0" when no stat result comes back,
// "1" when dest does not exist or has no checksum); transferFilePublic calls
// Connection.PutFile directly. Only Copy uses them.
func (c *Copy) remoteChecksumPublic(ctx context.Context, dest string, taskVars map[string]any) (string, error) {
	result, err := c.ExecuteModule(ctx, action.ExecuteModuleOptions{
		ModuleName: "stat",
		ModuleArgs: map[string]any{"path": dest, "get_checksum": true},
		TaskVars:   taskVars,
	})
	if err != nil {
		return "", err
	}
	stat, _ := result["stat"].(map[string]any)
	if stat == nil {
		return "0", nil
	}
	if exists, _ := stat["exists"].(bool); !exists {
		return "1", nil
	}
	if checksum, ok := stat["checksum"].(string); ok && checksum != "" {
		return checksum, nil
	}
	return "1", nil
}

func (c *Copy) transferFilePublic(ctx context.Context, localPath, remotePath string) error {
	return c.Connection.PutFile(ctx, localPath, remotePath)
}
