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

package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gravitational/rexec/lib/action"
	"github.com/gravitational/rexec/lib/actions"
	"github.com/gravitational/rexec/lib/connection"
	"github.com/gravitational/rexec/lib/diagnostics"
	"github.com/gravitational/rexec/lib/moduleloader"
	"github.com/gravitational/rexec/lib/playbook"
	"github.com/gravitational/rexec/lib/shell"
)

// hostResult is one host's outcome, collected back on the main goroutine
// from the worker pool.
type hostResult struct {
	Host   string
	Result map[string]any
	Err    error
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		taskPath      string
		inventoryPath string
		modulePaths   []string
		transport     string
		sshUser       string
		sshKeyPath    string
		knownHosts    string
		becomeUser    string
		becomeMethod  string
		concurrency   int
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a task against every host in the inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*configPath)

			task, err := playbook.LoadTaskFile(taskPath)
			if err != nil {
				return err
			}
			hosts, err := playbook.LoadInventoryFile(inventoryPath)
			if err != nil {
				return err
			}
			if len(hosts) == 0 {
				return fmt.Errorf("inventory %s contains no hosts", inventoryPath)
			}

			sink := diagnostics.NewSink(cfg.Debug)
			loader := moduleloader.NewLoader(modulePaths...)

			pc := &playbook.PlayContext{
				RemoteUser:   sshUser,
				Become:       becomeUser != "",
				BecomeUser:   becomeUser,
				BecomeMethod: becomeMethod,
				Pipelining:   true,
			}

			if concurrency <= 0 {
				concurrency = 5
			}

			results := runAgainstInventory(cmd.Context(), hosts, concurrency, timeout, func(ctx context.Context, h playbook.Host) (map[string]any, error) {
				conn, connCloser, err := dialConnection(transport, h, sshUser, sshKeyPath, knownHosts)
				if err != nil {
					return nil, err
				}
				if connCloser != nil {
					defer connCloser()
				}

				base := action.NewBase(task, conn, pc, loader, cfg, sink)
				run, err := buildAction(task.Action, base)
				if err != nil {
					return nil, err
				}
				return run.Run(ctx, "", map[string]any{"ansible_ssh_user": sshUser})
			})

			exitCode := 0
			for _, r := range results {
				if r.Err != nil {
					exitCode = 1
					logrus.WithField("host", r.Host).WithError(r.Err).Error("task failed")
					continue
				}
				logrus.WithField("host", r.Host).WithField("result", r.Result).Info("task completed")
			}
			if exitCode != 0 {
				os.Exit(exitCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskPath, "task", "", "path to a task YAML file")
	cmd.Flags().StringVar(&inventoryPath, "inventory", "", "path to an inventory YAML file")
	cmd.Flags().StringSliceVar(&modulePaths, "module-path", nil, "directories to search for modules")
	cmd.Flags().StringVar(&transport, "transport", "ssh", "connection transport: ssh or local")
	cmd.Flags().StringVar(&sshUser, "user", "root", "remote user to connect as")
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key", "", "path to an SSH private key")
	cmd.Flags().StringVar(&knownHosts, "known-hosts", "", "path to a known_hosts file; host key checking is disabled when empty")
	cmd.Flags().StringVar(&becomeUser, "become-user", "", "user to become via privilege escalation")
	cmd.Flags().StringVar(&becomeMethod, "become-method", "sudo", "privilege escalation method (sudo or su)")
	cmd.Flags().IntVar(&concurrency, "hosts", 5, "maximum number of hosts to run against concurrently")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-host execution timeout")
	cmd.MarkFlagRequired("task")
	cmd.MarkFlagRequired("inventory")

	return cmd
}

// runAgainstInventory fans work out one goroutine per host, with a
// semaphore keeping at most concurrency of them running at once, and
// collects every host's result back on the calling goroutine.
func runAgainstInventory(ctx context.Context, hosts []playbook.Host, concurrency int, timeout time.Duration, work func(context.Context, playbook.Host) (map[string]any, error)) []hostResult {
	sem := make(chan struct{}, concurrency)
	resultsCh := make(chan hostResult, len(hosts))
	var wg sync.WaitGroup

	for _, h := range hosts {
		h := h
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			hostCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res, err := work(hostCtx, h)
			resultsCh <- hostResult{Host: h.Address, Result: res, Err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	results := make([]hostResult, 0, len(hosts))
	for r := range resultsCh {
		results = append(results, r)
	}
	return results
}

func buildAction(name string, base *action.Base) (action.Executor, error) {
	switch name {
	case "ping":
		return actions.NewPing(base), nil
	case "command", "shell":
		base.SupportsCheckMode = false
		return actions.NewCommand(base), nil
	case "copy":
		base.TransfersFiles = true
		return actions.NewCopy(base), nil
	case "fetch":
		return actions.NewFetch(base), nil
	case "template":
		base.TransfersFiles = true
		return actions.NewTemplate(base), nil
	default:
		return nil, fmt.Errorf("unknown action %q", name)
	}
}

// dialConnection returns a Connection for transport, along with an
// optional close function for connections that hold a live client (SSH).
func dialConnection(transport string, h playbook.Host, user, keyPath, knownHostsPath string) (connection.Connection, func(), error) {
	sh := shell.NewPosix()

	switch transport {
	case "local":
		return connection.NewLocal(sh, ""), nil, nil
	case "ssh":
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading ssh key %s: %w", keyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing ssh key %s: %w", keyPath, err)
		}
		hostKeyCallback, err := hostKeyCallback(knownHostsPath)
		if err != nil {
			return nil, nil, err
		}
		clientConfig := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		}
		addr := h.Address
		if addr == "" {
			addr = h.Hostname
		}
		client, err := ssh.Dial("tcp", addr+":22", clientConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
		}
		return connection.NewSSH(client, sh, true), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", transport)
	}
}

// hostKeyCallback returns a verifying callback when knownHostsPath is set,
// or an insecure pass-through otherwise. The insecure default matches the
// posture of a one-off CLI invocation; production embedders should always
// pass --known-hosts.
func hostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts %s: %w", knownHostsPath, err)
	}
	return cb, nil
}
