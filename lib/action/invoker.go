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
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/gravitational/rexec/lib/moduleloader"
	"github.com/gravitational/rexec/lib/shell"
)

// ExecuteModuleOptions configures one execute_module call. ModuleName and
// ModuleArgs default to the task's own action/args when left zero.
type ExecuteModuleOptions struct {
	ModuleName   string
	ModuleArgs   map[string]any
	Tmp          string
	TaskVars     map[string]any
	// PersistFiles suppresses the tmp-directory cleanup this call would
	// otherwise perform, for callers that need the staged module files to
	// outlive this single invocation (e.g. a later diff/fetch pass).
	PersistFiles bool
}

// ExecuteModule transfers and runs a module along with its arguments,
// returning the module's parsed result.
func (b *Base) ExecuteModule(ctx context.Context, opts ExecuteModuleOptions) (ModuleResult, error) {
	taskVars := opts.TaskVars
	if taskVars == nil {
		taskVars = map[string]any{}
	}

	moduleName := opts.ModuleName
	if moduleName == "" {
		moduleName = b.Task.Action
	}
	moduleArgs := opts.ModuleArgs
	if moduleArgs == nil {
		moduleArgs = b.Task.Args
	}
	// Never mutate the caller's map with injected control arguments.
	moduleArgs = cloneArgs(moduleArgs)

	if b.PlayContext.CheckMode {
		if !b.SupportsCheckMode {
			return nil, ExecutionError("check mode is not supported for this operation")
		}
		moduleArgs["_ansible_check_mode"] = true
	} else {
		moduleArgs["_ansible_check_mode"] = false
	}

	remoteUser := b.PlayContext.RemoteUser
	if v, ok := taskVars["ansible_ssh_user"].(string); ok && v != "" {
		remoteUser = v
	}

	moduleArgs["_ansible_no_log"] = b.PlayContext.NoLog || b.Config.NoTargetSyslog
	moduleArgs["_ansible_debug"] = b.Config.Debug
	moduleArgs["_ansible_diff"] = b.PlayContext.Diff
	moduleArgs["_ansible_verbosity"] = b.PlayContext.Verbosity

	style, shebang, moduleData, err := b.configureModule(moduleName, moduleArgs, taskVars)
	if err != nil {
		return nil, err
	}
	if shebang == "" {
		return nil, ExecutionError("module (%s) is missing interpreter line", moduleName)
	}

	tmp := opts.Tmp
	if tmp == "" && b.lateNeedsTmpPath(tmp, style) {
		tmp, err = b.makeTmpPath(ctx, remoteUser)
		if err != nil {
			return nil, err
		}
		b.cleanupRemoteTmp = true
	}

	var remoteModulePath, argsFilePath string
	if tmp != "" {
		remoteModulePath = b.Connection.Shell().JoinPath(tmp, b.Connection.Shell().RemoteFilename(moduleName))
		if style == moduleloader.StyleOld || style == moduleloader.StyleNonNativeWantJSON {
			argsFilePath = b.Connection.Shell().JoinPath(tmp, "args")
		}
	}

	if remoteModulePath != "" || style != moduleloader.StyleNew {
		b.debug("transferring module to remote", nil)
		if err := b.transferData(ctx, remoteModulePath, moduleData); err != nil {
			return nil, err
		}
		switch style {
		case moduleloader.StyleOld:
			if err := b.transferData(ctx, argsFilePath, oldStyleArgsLine(b.Connection.Shell(), moduleArgs)); err != nil {
				return nil, err
			}
		case moduleloader.StyleNonNativeWantJSON:
			if err := b.transferData(ctx, argsFilePath, moduleArgs); err != nil {
				return nil, err
			}
		}
		b.debug("done transferring module to remote", nil)
	}

	envPrefix, err := b.computeEnvironmentString()
	if err != nil {
		return nil, err
	}

	var cmdPath string
	var inData []byte
	pipelineActive := b.Connection.HasPipelining() && b.PlayContext.Pipelining && !b.Config.KeepRemoteFiles && style == moduleloader.StyleNew
	if pipelineActive {
		inData = moduleData
		cmdPath = strings.TrimSpace(strings.TrimPrefix(shebang, "#!"))
	} else if remoteModulePath != "" {
		cmdPath = remoteModulePath
	}

	// A staged module invoked directly by path needs its execute bit set;
	// one piped straight into its interpreter's stdin does not.
	if err := b.fixupPerms(ctx, tmp, remoteUser, cmdPath == remoteModulePath && remoteModulePath != "", true); err != nil {
		return nil, err
	}

	cleanupEligible := tmp != "" && strings.Contains(tmp, "tmp") && !b.Config.KeepRemoteFiles && !opts.PersistFiles

	var rmTmp string
	if cleanupEligible && (!b.PlayContext.Become || b.PlayContext.BecomeUser == "root") {
		rmTmp = tmp
	}

	cmd := strings.TrimSpace(b.Connection.Shell().BuildModuleCommand(envPrefix, shebang, cmdPath, argsFilePath, rmTmp))

	sudoable := moduleName != "accelerate"

	res, err := b.LowLevelExecuteCommand(ctx, cmd, sudoable, inData, "")
	if err != nil {
		return nil, err
	}

	if cleanupEligible && b.PlayContext.Become && b.PlayContext.BecomeUser != "root" {
		// Becoming to a non-root user may leave files the original
		// connecting user can't remove as that other user; clean up in a
		// second step, back under the connecting identity.
		rmCmd := b.Connection.Shell().Remove(tmp, true)
		rmRes, rmErr := b.LowLevelExecuteCommand(ctx, rmCmd, false, nil, "")
		if rmErr != nil || rmRes.RC != 0 {
			var agg error
			if rmErr != nil {
				agg = multierror.Append(agg, rmErr)
			}
			fields := map[string]interface{}{"rc": safeRC(rmRes), "stderr": safeStderr(rmRes)}
			if agg != nil {
				fields["error"] = agg.Error()
			}
			b.warn("error deleting remote temporary files", fields)
		}
	}

	data := parseReturnedData(res)
	if _, hasLines := data["stdout_lines"]; !hasLines {
		if stdout, ok := data["stdout"].(string); ok {
			data["stdout_lines"] = splitLines(stdout)
		}
	}

	b.debug("done with execute_module", map[string]interface{}{"module": moduleName})
	return data, nil
}

// lateNeedsTmpPath determines whether a tmp path is required after some
// early actions have already taken place.
func (b *Base) lateNeedsTmpPath(tmp string, style moduleloader.Style) bool {
	if tmp != "" && strings.Contains(tmp, "tmp") {
		return false
	}
	if !b.Connection.HasPipelining() || !b.PlayContext.Pipelining || b.Config.KeepRemoteFiles || b.PlayContext.BecomeMethod == "su" {
		return true
	}
	if style != moduleloader.StyleNew {
		return true
	}
	return false
}

// oldStyleArgsLine builds the k="v" args-file line old-style modules read,
// quoting each value with the shell's own Quote (the pipes.quote()
// equivalent) and then wrapping that quoted form in literal double quotes,
// matching the original's `'%s="%s" ' % (k, pipes.quote(str(v)))`.
func oldStyleArgsLine(sh shell.Shell, args map[string]any) string {
	var b strings.Builder
	for k, v := range args {
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(sh.Quote(toEnvString(v)))
		b.WriteString(`" `)
	}
	return b.String()
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+5)
	for k, v := range args {
		out[k] = v
	}
	return out
}

func safeRC(res *LowLevelResult) int {
	if res == nil {
		return -1
	}
	return res.RC
}

func safeStderr(res *LowLevelResult) string {
	if res == nil {
		return "No error string available."
	}
	return res.Stderr
}
