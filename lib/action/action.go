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

// Package action implements the remote action execution core: locating and
// preparing an executable module for a host, staging it and its arguments
// through a remote temporary area under privilege escalation, invoking it
// over a pluggable transport, parsing a structured result from interleaved
// shell output, and cleaning up.
package action

import (
	"context"

	"github.com/gravitational/rexec/lib/config"
	"github.com/gravitational/rexec/lib/connection"
	"github.com/gravitational/rexec/lib/diagnostics"
	"github.com/gravitational/rexec/lib/moduleloader"
	"github.com/gravitational/rexec/lib/playbook"
)

// Executor is the one operation every concrete action subtype implements.
// tmp, when non-empty, is an already-created remote scratch directory to
// reuse instead of making a new one (nested module calls pass this along).
type Executor interface {
	Run(ctx context.Context, tmp string, taskVars map[string]any) (map[string]any, error)
}

// Base holds everything shared across one (task, host) invocation and
// implements the staging/invocation protocol every concrete subtype calls
// into repeatedly. It is not itself a complete Executor — concrete
// subtypes embed Base and supply Run.
type Base struct {
	Task        *playbook.Task
	Connection  connection.Connection
	PlayContext *playbook.PlayContext
	Loader      *moduleloader.Loader
	Config      *config.Config
	Sink        *diagnostics.Sink

	// TransfersFiles reports whether this subtype needs a tmp path created
	// up front, before Run does anything else.
	TransfersFiles bool
	// SupportsCheckMode defaults to true; subtypes that cannot safely
	// no-op under check mode must set this false.
	SupportsCheckMode bool

	invocationID     string
	cleanupRemoteTmp bool
}

// NewBase constructs a Base for one (task, host) invocation.
func NewBase(task *playbook.Task, conn connection.Connection, pc *playbook.PlayContext, loader *moduleloader.Loader, cfg *config.Config, sink *diagnostics.Sink) *Base {
	return &Base{
		Task:              task,
		Connection:        conn,
		PlayContext:       pc,
		Loader:            loader,
		Config:            cfg,
		Sink:              sink,
		SupportsCheckMode: true,
		invocationID:      diagnostics.NewInvocationID(),
	}
}

// baseResult builds a result map that records the module invocation when
// the task is synchronous. The Run methods in lib/actions do not call it,
// so their results carry no "invocation" entry.
func (b *Base) baseResult() map[string]any {
	results := map[string]any{}
	if b.Task.Async == 0 {
		results["invocation"] = map[string]any{
			"module_name": b.Task.Action,
			"module_args": b.Task.Args,
		}
	}
	return results
}

// earlyNeedsTmpPath reports whether a tmp path should be created before
// the action runs at all.
func (b *Base) earlyNeedsTmpPath() bool {
	return b.TransfersFiles
}

func (b *Base) remoteFileExists(ctx context.Context, path string) (bool, error) {
	cmd := b.Connection.Shell().Exists(path)
	res, err := b.LowLevelExecuteCommand(ctx, cmd, true, nil, "")
	if err != nil {
		return false, err
	}
	return res.RC == 0, nil
}
