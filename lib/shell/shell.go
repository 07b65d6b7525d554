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

// Package shell builds the remote command strings the action core needs,
// for the two supported shell families. Implementations are pure
// string-builders: they never execute anything themselves.
package shell

// Family tags the abstract target command-language class a Shell belongs
// to.
type Family string

const (
	// FamilyPosix covers /bin/sh-compatible remote shells.
	FamilyPosix Family = "posix"
	// FamilyPowerShell covers Windows PowerShell targets.
	FamilyPowerShell Family = "powershell"
)

// Shell is the capability bundle every connection plugin exposes for
// building remote command strings. No method here executes anything; they
// all return command strings for the caller to run via Connection.
type Shell interface {
	Family() Family

	// Mkdtemp builds a command that creates a fresh temp directory with the
	// given prefix and mode, printing its absolute path on stdout.
	// useSystemTmp selects the system-wide scratch area over the user's
	// home directory.
	Mkdtemp(prefix string, useSystemTmp bool, mode int) string

	// Remove builds a command that deletes path, recursively when recurse
	// is set.
	Remove(path string, recurse bool) string

	// Chmod builds a chmod command for path with the given mode spec
	// (e.g. "u+x", "a+rX").
	Chmod(mode, path string, recursive bool) string

	// Chown builds a chown command for path. group may be empty.
	Chown(path, user, group string, recursive bool) string

	// SetUserFACL builds a setfacl command granting mode (e.g. "rx", "rX")
	// to user on path.
	SetUserFACL(path, user, mode string, recursive bool) string

	// Exists builds a command whose exit status reports whether path
	// exists.
	Exists(path string) string

	// ExpandUser builds a command that tilde-expands prefix on the remote
	// side and prints the result.
	ExpandUser(prefix string) string

	// JoinPath joins path segments using this shell family's path
	// separator convention.
	JoinPath(parts ...string) string

	// EnvPrefix builds an environment-variable prefix string (e.g.
	// `FOO=bar BAZ=qux `) from an ordered set of key/value pairs.
	EnvPrefix(env map[string]string) string

	// Quote escapes s for safe inclusion as a single token in a command
	// line built for this shell family, the pipes.quote()/Quote-String
	// job every other command-building method here already leans on.
	Quote(s string) string

	// RemoteFilename derives the on-disk filename a module named
	// moduleName should be staged under.
	RemoteFilename(moduleName string) string

	// BuildModuleCommand assembles the final command line that invokes a
	// staged (or piped) module: environment prefix, interpreter shebang,
	// the command/path to run, an optional arguments file path, and an
	// optional tmp directory to remove as part of the same command.
	BuildModuleCommand(envPrefix, shebang, cmd, argPath, rmTmp string) string

	// Unquote strips one layer of quoting artifacts from s, reporting
	// whether it actually found any; the second return mirrors Python's
	// hasattr(shell, '_unquote') check — a Shell that doesn't implement
	// this meaningfully always returns (s, false).
	Unquote(s string) (string, bool)
}
