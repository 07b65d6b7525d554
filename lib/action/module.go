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
	"fmt"

	"github.com/gravitational/rexec/lib/moduleloader"
)

// configureModule searches the module path index for moduleName using the
// connection's suffix preferences, applies the PowerShell compatibility
// rewrites, and delegates to the module assembler.
func (b *Base) configureModule(moduleName string, moduleArgs map[string]any, taskVars map[string]any) (moduleloader.Style, string, []byte, error) {
	if taskVars == nil {
		taskVars = map[string]any{}
	}

	var modulePath string
	for _, suffix := range b.Connection.ModuleImplementationPreferences() {
		if suffix == ".ps1" {
			switch moduleName {
			case "stat", "file", "copy":
				if b.Task.Action != moduleName {
					moduleName = "win_" + moduleName
				}
			}
			switch moduleName {
			case "win_stat", "win_file", "win_copy", "slurp":
				if moduleArgs != nil {
					for _, key := range []string{"src", "dest", "path"} {
						if v, ok := moduleArgs[key]; ok {
							if s, ok := v.(string); ok {
								if unquoted, found := b.Connection.Shell().Unquote(s); found {
									moduleArgs[key] = unquoted
								}
							}
						}
					}
				}
			}
		}

		if p := b.Loader.Find(moduleName, suffix); p != "" {
			modulePath = p
			break
		}
	}

	if modulePath == "" {
		pingModule := "ping"
		prefs := b.Connection.ModuleImplementationPreferences()
		hasPS1 := false
		for _, suffix := range prefs {
			if suffix == ".ps1" {
				hasPS1 = true
			}
		}
		if hasPS1 {
			pingModule = "win_ping"
		}
		found := false
		for _, suffix := range prefs {
			if b.Loader.Find(pingModule, suffix) != "" {
				found = true
				break
			}
		}
		if found {
			return "", "", nil, ExecutionError("the module %s was not found in configured module paths", moduleName)
		}
		return "", "", nil, ExecutionError("the module %s was not found in configured module paths. Additionally, core modules are missing", moduleName)
	}

	data, style, shebang, err := moduleloader.Assemble(modulePath, moduleArgs)
	if err != nil {
		return "", "", nil, fmt.Errorf("assembling module %s: %w", moduleName, err)
	}

	return style, shebang, data, nil
}
