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
	"encoding/json"
	"strings"
)

// ModuleResult is the structured outcome of one module invocation,
// returned by execute_module. On a parse failure it degrades gracefully
// instead of raising: Failed/Parsed/Msg/ModuleStdout/ModuleStderr are set
// and the caller decides whether that's fatal.
type ModuleResult map[string]any

// filterLeadingNonJSONLines discards leading lines of data that don't
// start with '{' or '[', tolerating MOTD banners and tcgetattr noise from
// chatty shells. Only leading lines are filtered, since multi-line JSON
// bodies are valid.
func filterLeadingNonJSONLines(data string) string {
	idx := 0
	for {
		nl := strings.IndexByte(data[idx:], '\n')
		var line string
		if nl < 0 {
			line = data[idx:]
		} else {
			line = data[idx : idx+nl+1]
		}
		if strings.HasPrefix(line, "{") || strings.HasPrefix(line, "[") {
			break
		}
		if line == "" {
			break
		}
		idx += len(line)
		if nl < 0 {
			break
		}
	}
	return data[idx:]
}

// parseReturnedData parses the module's stdout as JSON, trimming leading
// banner noise first. A parse failure never propagates as an error; it
// synthesizes the standard MODULE FAILURE result instead.
func parseReturnedData(res *LowLevelResult) ModuleResult {
	trimmed := filterLeadingNonJSONLines(res.Stdout)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		data := ModuleResult{
			"failed":        true,
			"parsed":        false,
			"msg":           "MODULE FAILURE",
			"module_stdout": res.Stdout,
		}
		if res.Stderr != "" {
			data["module_stderr"] = res.Stderr
			if strings.HasPrefix(res.Stderr, "Traceback") {
				data["exception"] = res.Stderr
			}
		}
		return data
	}

	out := ModuleResult{}
	for k, v := range parsed {
		out[k] = v
	}
	return out
}
