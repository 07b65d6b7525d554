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
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/gravitational/rexec/lib/action"
)

// Fetch is the inverse of Copy: it slurps a remote file's content and
// writes the decoded bytes to a local destination.
type Fetch struct {
	*action.Base
}

// NewFetch wraps base as a Fetch action.
func NewFetch(base *action.Base) *Fetch {
	return &Fetch{Base: base}
}

func (f *Fetch) Run(ctx context.Context, tmp string, taskVars map[string]any) (map[string]any, error) {
	args := f.Task.Args
	src, _ := args["src"].(string)
	dest, _ := args["dest"].(string)
	if src == "" || dest == "" {
		return nil, action.ExecutionError("fetch requires both src and dest arguments")
	}

	result, err := f.ExecuteModule(ctx, action.ExecuteModuleOptions{
		ModuleName: "slurp",
		ModuleArgs: map[string]any{"path": src},
		Tmp:        tmp,
		TaskVars:   taskVars,
	})
	if err != nil {
		return nil, err
	}
	if failed, _ := result["failed"].(bool); failed {
		return map[string]any(result), nil
	}

	content, _ := result["content"].(string)
	encoding, _ := result["encoding"].(string)
	var raw []byte
	if encoding == "base64" {
		raw, err = base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, action.ExecutionError("fetch could not base64-decode content for %s: %v", src, err)
		}
	} else {
		raw = []byte(content)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, action.ExecutionError("fetch could not create local directory for %s: %v", dest, err)
	}
	if err := os.WriteFile(dest, raw, 0o644); err != nil {
		return nil, action.ExecutionError("fetch could not write local file %s: %v", dest, err)
	}

	return map[string]any{
		"changed": true,
		"dest":    dest,
		"src":     src,
	}, nil
}
