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

// Package moduleloader stands in for the out-of-scope module search path
// and module-common assembly service the action core delegates to.
package moduleloader

import (
	"os"
	"path/filepath"
)

// Loader is the module path index: find_plugin(name, suffix) -> path.
type Loader struct {
	searchPaths []string
}

// NewLoader builds a Loader that searches each of searchPaths, in order,
// for a module file.
func NewLoader(searchPaths ...string) *Loader {
	return &Loader{searchPaths: searchPaths}
}

// Find looks for a file named name+suffix in any configured search path,
// returning its path, or "" if not found anywhere.
func (l *Loader) Find(name, suffix string) string {
	for _, dir := range l.searchPaths {
		candidate := filepath.Join(dir, name+suffix)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
