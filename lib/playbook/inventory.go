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

package playbook

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Host is one inventory-addressable target.
type Host struct {
	Address  string            `yaml:"address"`
	Hostname string            `yaml:"hostname"`
	Labels   map[string]string `yaml:"labels"`
}

// Group is a named set of hosts with shared variables, the same shape the
// dynamic-inventory script format Ansible expects from `--list` uses.
type Group struct {
	Hosts []string               `json:"Hosts"`
	Vars  map[string]interface{} `json:"Vars"`
}

// Inventory is a label-grouped view over a set of hosts, built the way the
// original dynamic-inventory tooling built one from a server list: one
// group per distinct "label=value" pair, named "label-value".
type Inventory struct {
	Groups map[string]*Group `json:"Groups"`
}

// BuildInventory groups hosts by each of their labels, mirroring
// DynamicInventoryList's "os-gentoo", "role-database"-style group naming.
func BuildInventory(hosts []Host) *Inventory {
	inv := &Inventory{Groups: map[string]*Group{}}
	for _, h := range hosts {
		keys := make([]string, 0, len(h.Labels))
		for k := range h.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			groupName := fmt.Sprintf("%s-%s", k, h.Labels[k])
			g, ok := inv.Groups[groupName]
			if !ok {
				g = &Group{Vars: map[string]interface{}{}}
				inv.Groups[groupName] = g
			}
			g.Hosts = append(g.Hosts, h.Address)
		}
	}
	return inv
}

// MarshalList serializes the inventory in the `--list` JSON shape dynamic
// inventory scripts are expected to emit.
func (inv *Inventory) MarshalList() ([]byte, error) {
	return json.Marshal(inv)
}

// LoadTaskFile reads a single task definition from a YAML file. This is
// the minimal on-disk format cmd/rexec consumes; it intentionally has no
// templating, conditionals, or loops.
func LoadTaskFile(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}
	var t Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing task file %s: %w", path, err)
	}
	return &t, nil
}

// LoadInventoryFile reads a static host list from a YAML file.
func LoadInventoryFile(path string) ([]Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory file %s: %w", path, err)
	}
	var hosts []Host
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return nil, fmt.Errorf("parsing inventory file %s: %w", path, err)
	}
	return hosts, nil
}
