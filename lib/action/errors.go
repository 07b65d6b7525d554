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

import "github.com/gravitational/trace"

// ConnectionFailure reports that the transport could not be used, or was
// misused at the remote end: authentication, permissions, SSH negotiation,
// or disk-full while creating a scratch directory. Always fatal to the
// current task.
func ConnectionFailure(err error, format string, args ...interface{}) error {
	return trace.ConnectionProblem(err, format, args...)
}

// ExecutionError reports a usage-level failure: module not found, missing
// interpreter line, check-mode unsupported, unexpected slurp encoding,
// environment not a mapping, or a remote chown/chmod/setfacl failure under
// become.
func ExecutionError(format string, args ...interface{}) error {
	return trace.BadParameter(format, args...)
}

// PermissionError reports a remote permission failure specifically (the
// become-escalation branches of fixup_perms), distinguished from a generic
// ExecutionError so callers can tell "module is broken" apart from
// "the target host's become configuration is broken".
func PermissionError(format string, args ...interface{}) error {
	return trace.AccessDenied(format, args...)
}
