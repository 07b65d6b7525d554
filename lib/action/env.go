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

import "fmt"

// computeEnvironmentString builds the environment-variable prefix string
// passed to shell.BuildModuleCommand. task.Environment may be a single
// mapping or an ordered sequence of mappings; when it's a sequence, the
// *originally-last* entry wins on key conflicts. The implementation
// reverses the sequence and then merges without overwriting keys already
// set, so the first mapping visited (the original last) is the one left
// standing for any shared key.
func (b *Base) computeEnvironmentString() (string, error) {
	final := map[string]string{}

	envs, err := normalizeEnvironments(b.Task.Environment)
	if err != nil {
		return "", err
	}

	// Reverse so the first-visit-wins merge below lands on the
	// originally-last mapping's keys taking precedence.
	for i, j := 0, len(envs)-1; i < j; i, j = i+1, j-1 {
		envs[i], envs[j] = envs[j], envs[i]
	}

	for _, env := range envs {
		for k, v := range env {
			if _, set := final[k]; !set {
				final[k] = v
			}
		}
	}

	return b.Connection.Shell().EnvPrefix(final), nil
}

// normalizeEnvironments coerces task.Environment into an ordered slice of
// string-keyed maps, rejecting anything that isn't a mapping or a sequence
// of mappings.
func normalizeEnvironments(raw any) ([]map[string]string, error) {
	if raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case map[string]any:
		m, err := stringifyMap(v)
		if err != nil {
			return nil, err
		}
		return []map[string]string{m}, nil
	case map[string]string:
		return []map[string]string{v}, nil
	case []map[string]any:
		out := make([]map[string]string, 0, len(v))
		for _, item := range v {
			m, err := stringifyMap(item)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	case []any:
		out := make([]map[string]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, ExecutionError("environment must be a dictionary, received %v (%T)", item, item)
			}
			stringified, err := stringifyMap(m)
			if err != nil {
				return nil, err
			}
			out = append(out, stringified)
		}
		return out, nil
	default:
		return nil, ExecutionError("environment must be a dictionary, received %v (%T)", raw, raw)
	}
}

func stringifyMap(m map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = toEnvString(v)
	}
	return out, nil
}

func toEnvString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
