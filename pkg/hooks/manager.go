// Package hooks runs user supplied Tengo scripts at fixed points of a
// package's lifecycle. Scripts are configured per package name.
package hooks

import (
	"context"
	"strings"
	"sync"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
)

// ErrHookTypeEmpty is returned when a hook has no type.
var ErrHookTypeEmpty = errors.Wrap(errors.ErrHookLoad, "hook type cannot be empty")

// Manager keeps one executor per package name.
type Manager struct {
	executors map[string]*TengoExecutor
	mutex     sync.RWMutex
}

var _ Runner = (*Manager)(nil)

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	return &Manager{executors: make(map[string]*TengoExecutor)}
}

func packageKey(pkgName string) string { return strings.ToLower(pkgName) }

// AddHook registers a script for pkgName, replacing any previous one of the same type.
func (m *Manager) AddHook(pkgName string, hook Hook) error {
	if hook.Type == "" {
		return ErrHookTypeEmpty
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := packageKey(pkgName)
	exec, ok := m.executors[key]
	if !ok {
		exec = NewTengoExecutor()
		m.executors[key] = exec
	}
	exec.AddScript(hook.Type, hook.Content)
	return nil
}

// HasHook reports whether pkgName has a script for hookType.
func (m *Manager) HasHook(pkgName string, hookType HookType) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	exec, ok := m.executors[packageKey(pkgName)]
	return ok && exec.HasScript(hookType)
}

// Run executes the hook registered for hc.PkgName.
func (m *Manager) Run(ctx context.Context, hookType HookType, hc HookContext) error {
	m.mutex.RLock()
	exec, ok := m.executors[packageKey(hc.PkgName)]
	m.mutex.RUnlock()
	if !ok || !exec.HasScript(hookType) {
		return nil
	}

	logger.Debug("Running hook", logger.Fields{"hook": string(hookType), "package": hc.PkgName})
	return exec.Execute(ctx, hookType, hc)
}
