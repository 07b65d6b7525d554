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

// Posix builds POSIX sh-compatible command strings.
type Posix struct {
	// SystemTmpDir is the system-wide scratch directory (e.g. "/tmp") used
	// when a caller asks for useSystemTmp.
	SystemTmpDir string
	// HomeTmpSubdir is the per-user scratch subdirectory relative to
	// $HOME, used otherwise.
	HomeTmpSubdir string
}

// NewPosix returns a Posix shell with the conventional defaults.
func NewPosix() *Posix {
	return &Posix{SystemTmpDir: "/tmp", HomeTmpSubdir: ".ansible/tmp"}
}

func (p *Posix) Family() Family { return FamilyPosix }

func (p *Posix) Mkdtemp(prefix string, useSystemTmp bool, mode int) string {
	// $HOME stays outside the quotes so the remote shell expands it.
	base := "$HOME/" + quote(p.HomeTmpSubdir)
	if useSystemTmp {
		base = quote(p.SystemTmpDir)
	}
	return fmt.Sprintf(
		`mkdir -p %s && chmod %o %s && mktemp -d %s/%s-XXXXXXXXXXXX`,
		base, mode, base, base, quote(prefix),
	)
}

func (p *Posix) Remove(path string, recurse bool) string {
	if recurse {
		return "rm -rf " + quote(path) + " >/dev/null 2>&1"
	}
	return "rm -f " + quote(path) + " >/dev/null 2>&1"
}

func (p *Posix) Chmod(mode, path string, recursive bool) string {
	if recursive {
		return fmt.Sprintf("chmod -R %s %s", quote(mode), quote(path))
	}
	return fmt.Sprintf("chmod %s %s", quote(mode), quote(path))
}

func (p *Posix) Chown(path, user, group string, recursive bool) string {
	owner := user
	if group != "" {
		owner = user + ":" + group
	}
	if recursive {
		return fmt.Sprintf("chown -R %s %s", quote(owner), quote(path))
	}
	return fmt.Sprintf("chown %s %s", quote(owner), quote(path))
}

func (p *Posix) SetUserFACL(path, user, mode string, recursive bool) string {
	if recursive {
		return fmt.Sprintf("setfacl -R -m u:%s:%s %s", shellIdentifier(user), mode, quote(path))
	}
	return fmt.Sprintf("setfacl -m u:%s:%s %s", shellIdentifier(user), mode, quote(path))
}

func (p *Posix) Exists(path string) string {
	return "test -e " + quote(path)
}

func (p *Posix) ExpandUser(prefix string) string {
	// Deliberately unquoted: tilde expansion only happens outside quotes.
	return "echo " + prefix
}

func (p *Posix) JoinPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		nonEmpty = append(nonEmpty, strings.Trim(part, "/"))
	}
	joined := strings.Join(nonEmpty, "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "/") {
		joined = "/" + joined
	}
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		joined += "/"
	}
	return joined
}

func (p *Posix) EnvPrefix(env map[string]string) string {
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
		fmt.Fprintf(&b, "%s=%s ", k, quote(env[k]))
	}
	return b.String()
}

func (p *Posix) RemoteFilename(moduleName string) string {
	return moduleName
}

func (p *Posix) BuildModuleCommand(envPrefix, shebang, cmd, argPath, rmTmp string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	if cmd != "" {
		b.WriteString(cmd)
		if argPath != "" {
			b.WriteString(" ")
			b.WriteString(quote(argPath))
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

func (p *Posix) Unquote(s string) (string, bool) {
	return s, false
}

func (p *Posix) Quote(s string) string {
	return quote(s)
}

// quote single-quote-escapes s for inclusion in a POSIX sh command line,
// the same job pipes.quote() does in the source this was translated from.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if isShellSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func isShellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("@%_-+=:,./", r):
		default:
			return false
		}
	}
	return true
}

// shellIdentifier shell-quotes a username/group for use inside a setfacl
// u:<name>:<mode> triplet; an empty name becomes ''. Colons in the name are
// left as they are.
func shellIdentifier(s string) string {
	return quote(s)
}
