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

	"github.com/gravitational/rexec/lib/action"
)

// Command runs the command/shell module family. creates/removes are
// evaluated here rather than inside the module itself, since they need to
// short-circuit before any remote work happens at all.
type Command struct {
	*action.Base
}

// NewCommand wraps base as a Command action.
func NewCommand(base *action.Base) *Command {
	return &Command{Base: base}
}

func (c *Command) Run(ctx context.Context, tmp string, taskVars map[string]any) (map[string]any, error) {
	args := cloneStringAny(c.Task.Args)

	creates, _ := args["creates"].(string)
	if creates != "" {
		exists, err := c.remoteFileExistsPublic(ctx, creates)
		if err != nil {
			return nil, err
		}
		if exists {
			return map[string]any{
				"changed": false,
				"skipped": true,
				"msg":     "skipped, since " + creates + " exists",
			}, nil
		}
	}

	removes, _ := args["removes"].(string)
	if removes != "" {
		exists, err := c.remoteFileExistsPublic(ctx, removes)
		if err != nil {
			return nil, err
		}
		if !exists {
			return map[string]any{
				"changed": false,
				"skipped": true,
				"msg":     "skipped, since " + removes + " does not exist",
			}, nil
		}
	}

	delete(args, "creates")
	delete(args, "removes")

	result, err := c.ExecuteModule(ctx, action.ExecuteModuleOptions{
		ModuleName: c.Task.Action,
		ModuleArgs: args,
		Tmp:        tmp,
		TaskVars:   taskVars,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any(result), nil
}

// remoteFileExistsPublic runs the stat module through ExecuteModule for
// creates/removes gating and reports its "exists" field; a missing stat
// result counts as not existing.
func (c *Command) remoteFileExistsPublic(ctx context.Context, path string) (bool, error) {
	res, err := c.ExecuteModule(ctx, action.ExecuteModuleOptions{
		ModuleName: "stat",
		ModuleArgs: map[string]any{"path": path},
	})
	if err != nil {
		return false, err
	}
	stat, _ := res["stat"].(map[string]any)
	if stat == nil {
		return false, nil
	}
	exists, _ := stat["exists"].(bool)
	return exists, nil
}

func cloneStringAny(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
