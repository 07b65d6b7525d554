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

// Package actions holds the concrete action subtypes built on top of the
// staging/invocation protocol in lib/action.
package actions

import (
	"context"

	"github.com/gravitational/rexec/lib/action"
)

// Ping is the trivial connectivity-check action: it carries no files and
// runs the ping module verbatim.
type Ping struct {
	*action.Base
}

// NewPing wraps base as a Ping action.
func NewPing(base *action.Base) *Ping {
	return &Ping{Base: base}
}

func (p *Ping) Run(ctx context.Context, tmp string, taskVars map[string]any) (map[string]any, error) {
	args := p.Task.Args
	if _, ok := args["data"]; !ok {
		args = map[string]any{"data": "pong"}
	}
	result, err := p.ExecuteModule(ctx, action.ExecuteModuleOptions{
		ModuleName: "ping",
		ModuleArgs: args,
		Tmp:        tmp,
		TaskVars:   taskVars,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any(result), nil
}
