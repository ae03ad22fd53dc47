// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// LocalRuntime is a Runtime backed by the host filesystem and shell. Mounted
// files land under a root directory, and commands run through `sh -c` with
// that directory as the working directory.
//
// It is the default runtime for single-machine deployments; a remote
// sandbox provider plugs in through the same Runtime interface.
//
// # Thread Safety
//
// Safe for concurrent use.
type LocalRuntime struct {
	root string

	mu    sync.Mutex
	ready ServerReadyFunc
}

// NewLocalRuntime creates a local runtime rooted at dir. The directory is
// created lazily on first mount.
func NewLocalRuntime(dir string) *LocalRuntime {
	return &LocalRuntime{root: dir}
}

// Root returns the runtime's filesystem root.
func (r *LocalRuntime) Root() string { return r.root }

// Mount writes the tree under the root, replacing files at the covered
// paths. Content outside the tree is left alone.
func (r *LocalRuntime) Mount(ctx context.Context, tree FSTree) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFSTree(r.root, tree)
}

func writeFSTree(base string, tree map[string]*FSNode) error {
	for name, node := range tree {
		target := filepath.Join(base, name)
		switch {
		case node.Directory != nil:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mount %s: %w", target, err)
			}
			if err := writeFSTree(target, node.Directory); err != nil {
				return err
			}
		case node.Symlink != nil:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mount %s: %w", target, err)
			}
			// Symlink creation fails on an existing name; remount replaces.
			_ = os.Remove(target)
			if err := os.Symlink(node.Symlink.Target, target); err != nil {
				return fmt.Errorf("mount %s: %w", target, err)
			}
		case node.File != nil:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mount %s: %w", target, err)
			}
			if err := os.WriteFile(target, []byte(node.File.Contents), 0o644); err != nil {
				return fmt.Errorf("mount %s: %w", target, err)
			}
		}
	}
	return nil
}

// Spawn runs command through the shell with the runtime root as working
// directory, streaming combined stdout/stderr line by line.
func (r *LocalRuntime) Spawn(ctx context.Context, command string) (Process, error) {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.root

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &localProcess{
		cmd:  cmd,
		out:  make(chan string),
		done: make(chan struct{}),
	}

	go func() {
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			p.out <- scanner.Text()
		}
		close(p.out)
	}()

	go func() {
		werr := cmd.Wait()
		_ = pw.Close()
		var exit *exec.ExitError
		switch {
		case werr == nil:
			p.code = 0
		case errors.As(werr, &exit):
			p.code = exit.ExitCode()
		default:
			p.err = werr
		}
		close(p.done)
	}()

	return p, nil
}

// OnServerReady registers the server-ready callback.
func (r *LocalRuntime) OnServerReady(fn ServerReadyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = fn
}

// NotifyServerReady fires the registered callback. The local runtime has no
// built-in port detection; whatever supervises the spawned server calls
// this when it starts listening.
func (r *LocalRuntime) NotifyServerReady(port int, url string) {
	r.mu.Lock()
	fn := r.ready
	r.mu.Unlock()
	if fn != nil {
		fn(port, url)
	}
}

// localProcess is the Process handle for a locally spawned command.
type localProcess struct {
	cmd  *exec.Cmd
	out  chan string
	done chan struct{}
	code int
	err  error
}

func (p *localProcess) Output() <-chan string { return p.out }

func (p *localProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-p.done:
		return p.code, p.err
	}
}

func (p *localProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

var _ Runtime = (*LocalRuntime)(nil)
