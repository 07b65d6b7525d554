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
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"strings"
)

// remoteStat is the subset of stat(2) fields get_diff_data and the copy
// family care about.
type remoteStat struct {
	Exists   bool
	IsDir    bool
	Checksum string
	Size     int64
}

// executeRemoteStat runs the stat module against path and normalizes its
// result. followLinks controls whether a symlink is stat'd or resolved.
func (b *Base) executeRemoteStat(ctx context.Context, path string, allDetails, followLinks bool) (*remoteStat, error) {
	args := map[string]any{
		"path":        path,
		"follow":      followLinks,
		"get_checksum": allDetails,
		"get_md5":     false,
	}
	res, err := b.ExecuteModule(ctx, ExecuteModuleOptions{ModuleName: "stat", ModuleArgs: args})
	if err != nil {
		return nil, err
	}
	if failed, _ := res["failed"].(bool); failed {
		if msg, ok := res["msg"].(string); ok && strings.Contains(strings.ToLower(msg), "permission denied") {
			return nil, PermissionError("Destination %s not writable", path)
		}
		return nil, ExecutionError("could not stat remote path %s: %v", path, res["msg"])
	}

	statField, _ := res["stat"].(map[string]any)
	if statField == nil {
		return &remoteStat{Exists: false}, nil
	}
	rs := &remoteStat{}
	if exists, ok := statField["exists"].(bool); ok {
		rs.Exists = exists
	} else {
		rs.Exists = true
	}
	if isDir, ok := statField["isdir"].(bool); ok {
		rs.IsDir = isDir
	}
	if checksum, ok := statField["checksum"].(string); ok {
		rs.Checksum = checksum
	}
	switch v := statField["size"].(type) {
	case float64:
		rs.Size = int64(v)
	case int64:
		rs.Size = v
	}
	return rs, nil
}

// remoteChecksum returns the sha1 checksum the remote side reports for
// path, or a sentinel: "1" when the path does not exist or the stat result
// carries no checksum, "3" when it is a directory. A failed stat call is
// returned as an error, not as a sentinel.
func (b *Base) remoteChecksum(ctx context.Context, path string, allVars map[string]any, followLinks bool) (string, error) {
	rs, err := b.executeRemoteStat(ctx, path, true, followLinks)
	if err != nil {
		return "", err
	}
	if !rs.Exists {
		return "1", nil
	}
	if rs.IsDir {
		return "3", nil
	}
	if rs.Checksum == "" {
		return "1", nil
	}
	return rs.Checksum, nil
}

// remoteExpandUser tilde-expands path on the remote side via the shell's
// ExpandUser builder, running it with the caller's sudoable flag. The path
// is split on "/" whatever the shell family, PowerShell targets included.
func (b *Base) remoteExpandUser(ctx context.Context, path string, sudoable bool) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	split := strings.SplitN(path, "/", 2)
	cmd := b.Connection.Shell().ExpandUser(split[0])
	res, err := b.LowLevelExecuteCommand(ctx, cmd, sudoable, nil, "")
	if err != nil {
		return "", err
	}
	expanded := strings.TrimSpace(splitLastNonEmpty(res.Stdout))
	if expanded == "" || strings.HasPrefix(expanded, split[0]) && expanded == split[0] && sudoable {
		return "", ExecutionError("could not expand the remote user path when becoming another user")
	}
	if len(split) == 2 {
		return b.Connection.Shell().JoinPath(expanded, split[1]), nil
	}
	return expanded, nil
}

func splitLastNonEmpty(s string) string {
	lines := splitLines(s)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// DiffResult is the before/after pair getDiffData produces for a single
// file, consumed by callers that want to render a unified diff. Binary and
// larger-than-limit fields mirror the peek module's own vocabulary: the
// binary flags are set to 1 (never a bool) and the larger-file fields carry
// the configured size limit that was exceeded, not a boolean sentinel.
type DiffResult struct {
	Before       string `json:"before,omitempty"`
	After        string `json:"after,omitempty"`
	BeforeHeader string `json:"before_header,omitempty"`
	AfterHeader  string `json:"after_header,omitempty"`
	DstBinary    int    `json:"dst_binary,omitempty"`
	SrcBinary    int    `json:"src_binary,omitempty"`
	DstLarger    int64  `json:"dst_larger,omitempty"`
	SrcLarger    int64  `json:"src_larger,omitempty"`
}

// getDiffData peeks the remote destFile through the file module's
// diff_peek contract and compares it against sourceFile (a local path, or
// literal content when sourceIsContent is set), so a caller can render a
// unified diff. taskVars is threaded through to both module invocations the
// same way every other ExecuteModule call in this package takes it. Either
// side can come back marked binary or larger than Config.MaxFileSizeForDiff
// instead of slurped content. When the play context has no_log set, any
// before/after content this produces is elided from the result.
func (b *Base) getDiffData(ctx context.Context, destFile, sourceFile string, taskVars map[string]any, sourceIsContent bool) (*DiffResult, error) {
	diff := &DiffResult{}
	var haveBefore, haveAfter bool

	peek, err := b.ExecuteModule(ctx, ExecuteModuleOptions{
		ModuleName:   "file",
		ModuleArgs:   map[string]any{"path": destFile, "diff_peek": true},
		TaskVars:     taskVars,
		PersistFiles: true,
	})
	if err != nil {
		return nil, err
	}

	failed, _ := peek["failed"].(bool)
	rc, _ := peek["rc"].(float64)
	if !failed || rc == 0 {
		state, _ := peek["state"].(string)
		appearsBinary, _ := peek["appears_binary"].(bool)
		var size int64
		switch v := peek["size"].(type) {
		case float64:
			size = int64(v)
		case int64:
			size = v
		}

		switch {
		case state == "absent":
			diff.Before = ""
			haveBefore = true
		case appearsBinary:
			diff.DstBinary = 1
		case b.Config.MaxFileSizeForDiff > 0 && size > b.Config.MaxFileSizeForDiff:
			diff.DstLarger = b.Config.MaxFileSizeForDiff
		default:
			slurp, err := b.ExecuteModule(ctx, ExecuteModuleOptions{
				ModuleName:   "slurp",
				ModuleArgs:   map[string]any{"path": destFile},
				TaskVars:     taskVars,
				PersistFiles: true,
			})
			if err != nil {
				return nil, err
			}
			if content, ok := slurp["content"].(string); ok {
				decoded, decErr := decodeSlurpContent(content, slurp["encoding"])
				if decErr == nil {
					diff.BeforeHeader = destFile
					diff.Before = decoded
					haveBefore = true
				}
			}
		}

		if sourceIsContent {
			diff.AfterHeader = "dynamically generated"
			diff.After = sourceFile
			haveAfter = true
		} else {
			info, statErr := os.Stat(sourceFile)
			if statErr != nil {
				return nil, ExecutionError("unable to stat source file %s: %v", sourceFile, statErr)
			}
			if b.Config.MaxFileSizeForDiff > 0 && info.Size() > b.Config.MaxFileSizeForDiff {
				diff.SrcLarger = b.Config.MaxFileSizeForDiff
			} else {
				raw, readErr := os.ReadFile(sourceFile)
				if readErr != nil {
					return nil, ExecutionError("unable to read source file %s: %v", sourceFile, readErr)
				}
				if bytes.ContainsRune(raw, 0) {
					diff.SrcBinary = 1
				} else {
					diff.AfterHeader = sourceFile
					diff.After = string(raw)
					haveAfter = true
				}
			}
		}
	}

	if b.PlayContext.NoLog {
		if haveBefore {
			diff.Before = ""
		}
		if haveAfter {
			diff.After = " [[ Diff output has been hidden because 'no_log: true' was specified for this result ]]"
		}
	}

	return diff, nil
}

func decodeSlurpContent(content string, encoding any) (string, error) {
	enc, _ := encoding.(string)
	if enc != "base64" {
		return content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return content, nil
	}
	return string(raw), nil
}
