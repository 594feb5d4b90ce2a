// Package worker implements the two worker roles spec.md §4.4/§4.5
// describe: a compute worker that dispatches to a native executor, and an
// orchestration worker that hosts the model-driven loop and proxies model
// I/O across the bridge to the parent (the model provider lives outside
// the sandbox). Both speak the same wire vocabulary defined in package
// bridge; this package adds the permission-narrowed execution context and
// the run.start/run.result lifecycle around it.
package worker

import "github.com/bolt-foundry/gambit/permission"

// Sandbox is a worker's permission-narrowed view of the filesystem,
// command, network, and environment surface it may touch (spec.md §4.3:
// "Each worker is created with a narrowed sandbox permission set derived
// from the effective permission set"). It wraps a permission.Checker built
// from the effective Set a deck load resolved.
type Sandbox struct {
	Effective permission.Set
	checker   *permission.Checker
}

// NewSandbox builds a Sandbox from an effective permission set.
func NewSandbox(effective permission.Set) *Sandbox {
	return &Sandbox{Effective: effective, checker: permission.NewChecker(effective)}
}

func (s *Sandbox) CanRead(p string) bool         { return s.checker.CanRead(p) }
func (s *Sandbox) CanWrite(p string) bool        { return s.checker.CanWrite(p) }
func (s *Sandbox) CanRunPath(p string) bool      { return s.checker.CanRunPath(p) }
func (s *Sandbox) CanRunCommand(cmd string) bool { return s.checker.CanRunCommand(cmd) }
func (s *Sandbox) CanAccessNet(host string) bool { return s.checker.CanAccessNet(host) }
func (s *Sandbox) CanReadEnv(name string) bool   { return s.checker.CanReadEnv(name) }
