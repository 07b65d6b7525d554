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

// Package playbook supplies the narrow, read-only task/play data the
// action core's capability interfaces require. It is not a templating
// engine or a role resolver — those stay out of scope.
package playbook

// Role is a back-reference a Task may carry for file-search purposes.
type Role struct {
	Name string
	Path string
}

// Task is the declarative operation the executor runs against one host.
type Task struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
	// Environment is either a map[string]any or a []map[string]any; later
	// entries in the slice form win, see lib/action/env.go.
	Environment any `yaml:"environment"`
	// Async is 0 for a synchronous task.
	Async int   `yaml:"async"`
	Role  *Role `yaml:"-"`
}

// PlayContext carries play-level settings that affect how every task in
// the play is executed.
type PlayContext struct {
	Become           bool
	BecomeUser       string
	BecomeMethod     string
	RemoteUser       string
	Pipelining       bool
	CheckMode        bool
	NoLog            bool
	Diff             bool
	Verbosity        int
	Executable       string
	ModuleCompression string
}

// MakeBecomeCmd wraps cmd in the configured become method's invocation.
// Only "sudo" and "su" are implemented; any other method is passed through
// unwrapped — unknown methods are a play-authoring error the surrounding
// layer is responsible for catching before it reaches the core.
func (pc *PlayContext) MakeBecomeCmd(cmd, executable string) string {
	if !pc.Become || cmd == "" {
		return cmd
	}
	exe := executable
	if exe == "" {
		exe = "/bin/sh"
	}
	switch pc.BecomeMethod {
	case "su":
		return "su " + pc.BecomeUser + " -c " + shellQuote(exe+" -c "+shellQuote(cmd))
	case "sudo", "":
		return "sudo -H -S -n -u " + pc.BecomeUser + " " + exe + " -c " + shellQuote(cmd)
	default:
		return cmd
	}
}

func shellQuote(s string) string {
	escaped := ""
	for _, r := range s {
		if r == '\'' {
			escaped += `'"'"'`
		} else {
			escaped += string(r)
		}
	}
	return "'" + escaped + "'"
}
