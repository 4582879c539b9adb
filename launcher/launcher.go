// Package launcher sequences container startup: it fires off the maintenance
// worker as a detached background child, then replaces the current process
// image with the API server so that signals and exit status belong to the
// server alone.
package launcher

import (
	"log"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Options controls which binaries are launched and how the server bind
// address is formed. All values come from the environment; the launcher
// itself validates nothing.
type Options struct {
	// WorkerBinary is started in the background, fire-and-forget.
	WorkerBinary string
	// ServerBinary replaces the launcher's process image.
	ServerBinary string
	// Port, when non-empty, is combined with the wildcard host into the
	// -addr argument passed to the server. When empty no argument is
	// passed and the server's own default applies.
	Port string
	// StartupDelay is an optional pause before launching anything.
	StartupDelay time.Duration
}

// Runner abstracts the two process operations so launch sequencing can be
// tested without spawning real binaries.
type Runner struct {
	// Start launches a detached child and returns without waiting on it.
	Start func(path string, args []string, env []string) error
	// Exec replaces the current process image. On success it never returns.
	Exec func(path string, argv []string, env []string) error
}

// OptionsFromEnv reads launcher configuration from the process environment.
func OptionsFromEnv() Options {
	opts := Options{
		WorkerBinary: os.Getenv("WORKER_BINARY"),
		ServerBinary: os.Getenv("SERVER_BINARY"),
		Port:         os.Getenv("PORT"),
	}
	if opts.WorkerBinary == "" {
		opts.WorkerBinary = "/app/worker"
	}
	if opts.ServerBinary == "" {
		opts.ServerBinary = "/app/server"
	}
	// Optional startup delay for Coolify compatibility
	if delay := os.Getenv("STARTUP_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			opts.StartupDelay = d
		}
	}
	return opts
}

// ServerArgv builds the argv for the foreground server. The bind address is
// a fixed wildcard host plus the configured port; with no port configured the
// server binary decides its own default.
func ServerArgv(opts Options) []string {
	if opts.Port == "" {
		return []string{opts.ServerBinary}
	}
	return []string{opts.ServerBinary, "-addr", "0.0.0.0:" + opts.Port}
}

// Run starts the worker in the background and then execs the server. A
// worker that fails to start is logged and otherwise ignored: there is no
// retry and no supervision. The returned error is only ever the exec
// failure, which is fatal because there is no process image to fall back to.
func Run(opts Options, runner Runner) error {
	if opts.StartupDelay > 0 {
		log.Printf("Applying startup delay: %v", opts.StartupDelay)
		time.Sleep(opts.StartupDelay)
	}

	env := os.Environ()

	if err := runner.Start(opts.WorkerBinary, []string{opts.WorkerBinary}, env); err != nil {
		// Non-fatal: the server must come up even when the worker cannot.
		log.Printf("Warning: failed to start worker %s: %v", opts.WorkerBinary, err)
	}

	return runner.Exec(opts.ServerBinary, ServerArgv(opts), env)
}

// DefaultRunner returns a Runner backed by the operating system: a detached
// exec.Command start and a syscall.Exec image replacement.
func DefaultRunner() Runner {
	return Runner{
		Start: func(path string, args []string, env []string) error {
			cmd := exec.Command(path, args[1:]...)
			cmd.Env = env
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			if err := cmd.Start(); err != nil {
				return err
			}
			// Detach: the child's exit status is intentionally never
			// collected, so it may be orphaned to the host reaper.
			return cmd.Process.Release()
		},
		Exec: func(path string, argv []string, env []string) error {
			return syscall.Exec(path, argv, env)
		},
	}
}
