// Package perception implements the perceptual-sign codec: the symmetric
// pair perceive(sign) -> value and format(value, tag) -> sign, plus the
// path-mapping table that turns logical resource identifiers into physical
// locations. Both the activation compiler (resource validation) and the
// execution engine (input resolution, output formatting) go through this
// package.
package perception

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"normcode/internal/config"
	"normcode/internal/plan"
)

// PathMap is the indirection from logical resource identifiers to physical
// locations. It is built from the paths section of the config file.
type PathMap struct {
	paradigmDir string
	promptDir   string
	dataDir     string
	scriptDir   string
	saveDir     string

	mu     sync.RWMutex
	params map[string]string
}

// NewPathMap builds a path map rooted at root. Relative directories in cfg
// are resolved against root; absolute ones pass through.
func NewPathMap(cfg config.PathsConfig, root string) *PathMap {
	join := func(dir string) string {
		if dir == "" || filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(root, dir)
	}
	params := make(map[string]string, len(cfg.Params))
	for k, v := range cfg.Params {
		params[k] = v
	}
	return &PathMap{
		paradigmDir: join(cfg.ParadigmDir),
		promptDir:   join(cfg.PromptDir),
		dataDir:     join(cfg.DataDir),
		scriptDir:   join(cfg.ScriptDir),
		saveDir:     join(cfg.SaveDir),
		params:      params,
	}
}

// Resolve maps a sign tag and payload path to a physical location.
// Absolute payloads pass through untouched.
func (m *PathMap) Resolve(tag plan.SignTag, payload string) (string, error) {
	if filepath.IsAbs(payload) {
		return payload, nil
	}
	var dir string
	switch tag {
	case plan.TagFile, plan.TagFileList:
		dir = m.dataDir
	case plan.TagPrompt:
		dir = m.promptDir
	case plan.TagScript:
		dir = m.scriptDir
	case plan.TagSave:
		dir = m.saveDir
	default:
		return "", fmt.Errorf("tag %s does not map to a location", tag)
	}
	if dir == "" {
		return payload, nil
	}
	return filepath.Join(dir, payload), nil
}

// ParadigmPath returns the physical location of a paradigm definition.
func (m *PathMap) ParadigmPath(paradigmID string) string {
	return filepath.Join(m.paradigmDir, paradigmID+".md")
}

// Param looks up a stored parameter.
func (m *PathMap) Param(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.params[name]
	return v, ok
}

// SetParam stores a parameter. Used by the param formatting pair.
func (m *PathMap) SetParam(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[name] = value
}

// Params returns a copy of the parameter table. Checkpoints persist it so
// param signs survive a process restart.
func (m *PathMap) Params() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.params))
	for k, v := range m.params {
		out[k] = v
	}
	return out
}

// EnsureSaveDir creates the save directory if needed.
func (m *PathMap) EnsureSaveDir() error {
	if m.saveDir == "" {
		return nil
	}
	return os.MkdirAll(m.saveDir, 0755)
}

// EnsureDataDir creates the data directory if needed.
func (m *PathMap) EnsureDataDir() error {
	if m.dataDir == "" {
		return nil
	}
	return os.MkdirAll(m.dataDir, 0755)
}
