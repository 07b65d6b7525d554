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

package shell

import (
	"fmt"
	"sort"
	"strings"
)

// PowerShell builds Windows PowerShell command strings. Only the surface
// the action core actually exercises is implemented; fixup_perms never
// calls into this shell at all.
type PowerShell struct {
	SystemTmpDir string
}

// NewPowerShell returns a PowerShell shell with the conventional default
// scratch directory.
func NewPowerShell() *PowerShell {
	return &PowerShell{SystemTmpDir: `C:\Windows\Temp`}
}

func (p *PowerShell) Family() Family { return FamilyPowerShell }

func (p *PowerShell) Mkdtemp(prefix string, useSystemTmp bool, mode int) string {
	base := `$env:USERPROFILE\AppData\Local\Temp`
	if useSystemTmp {
		base = p.SystemTmpDir
	}
	return fmt.Sprintf(
		`$d = Join-Path %s ("%s-" + [System.Guid]::NewGuid().ToString()); New-Item -ItemType Directory -Path $d | Out-Null; Write-Output $d`,
		psQuote(base), prefix,
	)
}

func (p *PowerShell) Remove(path string, recurse bool) string {
	if recurse {
		return fmt.Sprintf("Remove-Item -Force -Recurse -Path %s -ErrorAction SilentlyContinue", psQuote(path))
	}
	return fmt.Sprintf("Remove-Item -Force -Path %s -ErrorAction SilentlyContinue", psQuote(path))
}

// Chmod, Chown and SetUserFACL have no PowerShell analog; fixup_perms never
// calls a PowerShell shell, so these return empty commands per the
// low-level-executor's "empty cmd is a no-op" contract.
func (p *PowerShell) Chmod(string, string, bool) string               { return "" }
func (p *PowerShell) Chown(string, string, string, bool) string       { return "" }
func (p *PowerShell) SetUserFACL(string, string, string, bool) string { return "" }

func (p *PowerShell) Exists(path string) string {
	return fmt.Sprintf("Test-Path %s", psQuote(path))
}

func (p *PowerShell) ExpandUser(prefix string) string {
	return fmt.Sprintf("Write-Output ([System.Environment]::ExpandEnvironmentVariables(%s))", psQuote(prefix))
}

func (p *PowerShell) JoinPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		nonEmpty = append(nonEmpty, strings.Trim(part, `\`))
	}
	return strings.Join(nonEmpty, `\`)
}

func (p *PowerShell) EnvPrefix(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, `$env:%s = %s; `, k, psQuote(env[k]))
	}
	return b.String()
}

func (p *PowerShell) RemoteFilename(moduleName string) string {
	return moduleName + ".ps1"
}

func (p *PowerShell) BuildModuleCommand(envPrefix, shebang, cmd, argPath, rmTmp string) string {
	_ = shebang // PowerShell modules carry no interpreter shebang line
	var b strings.Builder
	b.WriteString(envPrefix)
	if cmd != "" {
		b.WriteString("& ")
		b.WriteString(psQuote(cmd))
		if argPath != "" {
			b.WriteString(" ")
			b.WriteString(psQuote(argPath))
		}
	}
	if rmTmp != "" {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.Remove(rmTmp, true))
	}
	return strings.TrimSpace(b.String())
}

func (p *PowerShell) Unquote(s string) (string, bool) {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1], true
	}
	return s, false
}

func (p *PowerShell) Quote(s string) string {
	return psQuote(s)
}

func psQuote(s string) string {
	escaped := strings.ReplaceAll(s, `"`, "`\"")
	return `"` + escaped + `"`
}
