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

// Package config carries the process-wide constants the action executor
// needs. Production code should construct a *Config explicitly and pass it
// through; Default exists only for cmd/rexec's entry point.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config mirrors the "Configuration constants" of the executor's data
// model: knobs that historically lived as global state and are now threaded
// through the executor constructor instead.
type Config struct {
	// KeepRemoteFiles disables all tmp-path cleanup when true.
	KeepRemoteFiles bool
	// NoTargetSyslog is OR'd into a task's no_log when neither is set
	// explicitly on the task.
	NoTargetSyslog bool
	// Debug enables verbose per-step debug logging.
	Debug bool
	// MaxFileSizeForDiff caps how large a remote/local file can be before
	// get_diff_data refuses to slurp it and reports a "larger" marker
	// instead. Zero or negative disables the cap.
	MaxFileSizeForDiff int64
	// AllowWorldReadableTmpfiles opts into the insecure chmod a+rX fallback
	// when setfacl is unavailable while becoming an unprivileged peer user.
	AllowWorldReadableTmpfiles bool
	// BecomeAllowSameUser forces the become wrapper even when become_user
	// equals remote_user.
	BecomeAllowSameUser bool
}

// Default is the package-level configuration used only by cmd/rexec's
// entry point. Everything under lib/ takes a *Config explicitly.
var Default = &Config{
	KeepRemoteFiles:            false,
	NoTargetSyslog:             false,
	Debug:                      false,
	MaxFileSizeForDiff:         1 * 1024 * 1024,
	AllowWorldReadableTmpfiles: false,
	BecomeAllowSameUser:        false,
}

// Load binds Default to environment variables prefixed REXEC_ and, when
// path is non-empty, a YAML config file, then returns the populated value.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REXEC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("keep_remote_files", Default.KeepRemoteFiles)
	v.SetDefault("no_target_syslog", Default.NoTargetSyslog)
	v.SetDefault("debug", Default.Debug)
	v.SetDefault("max_file_size_for_diff", Default.MaxFileSizeForDiff)
	v.SetDefault("allow_world_readable_tmpfiles", Default.AllowWorldReadableTmpfiles)
	v.SetDefault("become_allow_same_user", Default.BecomeAllowSameUser)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		KeepRemoteFiles:            v.GetBool("keep_remote_files"),
		NoTargetSyslog:             v.GetBool("no_target_syslog"),
		Debug:                      v.GetBool("debug"),
		MaxFileSizeForDiff:         v.GetInt64("max_file_size_for_diff"),
		AllowWorldReadableTmpfiles: v.GetBool("allow_world_readable_tmpfiles"),
		BecomeAllowSameUser:        v.GetBool("become_allow_same_user"),
	}
	return cfg, nil
}
