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
	"bytes"
	"context"
	"os"
	"text/template"

	"github.com/gravitational/rexec/lib/action"
)

// Template renders a Go text/template locally and delegates the transfer
// to Copy. This deliberately does not attempt Jinja2 compatibility; it is
// a narrow stand-in for the out-of-scope templating engine.
type Template struct {
	*action.Base
}

// NewTemplate wraps base as a Template action.
func NewTemplate(base *action.Base) *Template {
	return &Template{Base: base}
}

func (t *Template) Run(ctx context.Context, tmp string, taskVars map[string]any) (map[string]any, error) {
	args := t.Task.Args
	src, _ := args["src"].(string)
	dest, _ := args["dest"].(string)
	if src == "" || dest == "" {
		return nil, action.ExecutionError("template requires both src and dest arguments")
	}

	raw, err := os.ReadFile(src)
	if err != nil {
		return nil, action.ExecutionError("template could not read source %s: %v", src, err)
	}

	tmpl, err := template.New(src).Option("missingkey=zero").Parse(string(raw))
	if err != nil {
		return nil, action.ExecutionError("template could not parse %s: %v", src, err)
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, taskVars); err != nil {
		return nil, action.ExecutionError("template could not render %s: %v", src, err)
	}

	staged, err := os.CreateTemp("", "rexec-template-")
	if err != nil {
		return nil, action.ExecutionError("template could not stage rendered output: %v", err)
	}
	defer os.Remove(staged.Name())
	if _, err := staged.Write(rendered.Bytes()); err != nil {
		staged.Close()
		return nil, action.ExecutionError("template could not write rendered output: %v", err)
	}
	if err := staged.Close(); err != nil {
		return nil, action.ExecutionError("template could not close rendered output: %v", err)
	}

	copyArgs := cloneStringAny(args)
	delete(copyArgs, "src")
	copyArgs["src"] = staged.Name()
	copyArgs["dest"] = dest

	copyBase := *t.Base
	copyBase.Task = clonedTaskWithArgs(t.Task, copyArgs)
	copy := NewCopy(&copyBase)
	return copy.Run(ctx, tmp, taskVars)
}
