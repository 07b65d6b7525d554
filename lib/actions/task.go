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

import "github.com/gravitational/rexec/lib/playbook"

// clonedTaskWithArgs copies task with its Args replaced, used by actions
// that delegate to another action subtype with rewritten arguments.
func clonedTaskWithArgs(task *playbook.Task, args map[string]any) *playbook.Task {
	clone := *task
	clone.Args = args
	return &clone
}
