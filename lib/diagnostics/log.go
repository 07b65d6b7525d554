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

// Package diagnostics provides the structured logging and display-sink
// capability every executor shares. It is safe for concurrent use by many
// executors running on independent goroutines.
package diagnostics

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sink is the thread-safe display/log sink many executors share
// concurrently; it is read-only after construction.
type Sink struct {
	mu     sync.Mutex
	logger *logrus.Logger
	debug  bool
}

// NewSink builds a Sink. debug gates every Debug-level call site at once.
func NewSink(debug bool) *Sink {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &Sink{logger: l, debug: debug}
}

// NewInvocationID returns a correlation id for one execute_module call.
func NewInvocationID() string {
	return uuid.NewString()
}

// Debug logs a debug-level line with a field set, a no-op unless debug
// logging is enabled.
func (s *Sink) Debug(invocationID, msg string, fields logrus.Fields) {
	if !s.debug {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.WithFields(withInvocation(invocationID, fields)).Debug(msg)
}

// Warn logs a warning, always emitted regardless of the debug flag.
func (s *Sink) Warn(invocationID, msg string, fields logrus.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.WithFields(withInvocation(invocationID, fields)).Warn(msg)
}

func withInvocation(invocationID string, fields logrus.Fields) logrus.Fields {
	if fields == nil {
		fields = logrus.Fields{}
	}
	if invocationID != "" {
		fields["invocation_id"] = invocationID
	}
	return fields
}
