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
	"context"
	"regexp"
	"strings"
)

// LowLevelResult is the normalized, decoded form of a Connection.Result:
// stdout/stderr flattened to strings regardless of how the transport
// captured them.
type LowLevelResult struct {
	RC          int
	Stdout      string
	StdoutLines []string
	Stderr      string
}

var becomeSuccessPattern = regexp.MustCompile(`^(\r?\n)?BECOME-SUCCESS[^\r\n]*(\r)?\n`)

// LowLevelExecuteCommand runs cmd through the become wrapper and executable
// override (when applicable), dispatches it to the connection, and
// normalizes the result. An empty cmd short-circuits without contacting the
// transport at all — some PowerShell call sites have no POSIX analog like
// chmod to run.
func (b *Base) LowLevelExecuteCommand(ctx context.Context, cmd string, sudoable bool, inData []byte, executable string) (*LowLevelResult, error) {
	b.debug("low_level_execute_command: starting", nil)
	if cmd == "" {
		b.debug("low_level_execute_command: no command, exiting", nil)
		return &LowLevelResult{RC: 254}, nil
	}

	sameUser := b.PlayContext.BecomeUser == b.PlayContext.RemoteUser
	if sudoable && b.PlayContext.Become && (b.Config.BecomeAllowSameUser || !sameUser) {
		b.debug("low_level_execute_command: using become for this command", nil)
		cmd = b.PlayContext.MakeBecomeCmd(cmd, executable)
	}

	if b.Connection.AllowExecutable() {
		if executable == "" {
			executable = b.PlayContext.Executable
		}
		if executable != "" {
			cmd = executable + " -c " + shellSingleQuote(cmd)
		}
	}

	res, err := b.Connection.ExecCommand(ctx, cmd, inData, sudoable)
	if err != nil {
		return nil, err
	}

	rc := res.RC
	out := string(res.Stdout)
	errOut := string(res.Stderr)

	out = stripSuccessMessage(out)

	return &LowLevelResult{
		RC:          rc,
		Stdout:      out,
		StdoutLines: splitLines(out),
		Stderr:      errOut,
	}, nil
}

// stripSuccessMessage removes the become wrapper's BECOME-SUCCESS-<token>
// sentinel line from captured stdout before it reaches any parser.
func stripSuccessMessage(data string) string {
	if strings.HasPrefix(strings.TrimSpace(data), "BECOME-SUCCESS") {
		return becomeSuccessPattern.ReplaceAllString(data, "")
	}
	return data
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func shellSingleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func (b *Base) debug(msg string, fields map[string]interface{}) {
	if b.Sink == nil {
		return
	}
	lf := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		lf[k] = v
	}
	b.Sink.Debug(b.invocationID, msg, toLogrusFields(lf))
}

func (b *Base) warn(msg string, fields map[string]interface{}) {
	if b.Sink == nil {
		return
	}
	lf := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		lf[k] = v
	}
	b.Sink.Warn(b.invocationID, msg, toLogrusFields(lf))
}
