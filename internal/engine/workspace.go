package engine

// Workspace holds the per-run transients that are not concept values:
// failure records, loop cursors, and loop accumulators. It is serialized
// into every checkpoint so a resumed run continues mid-loop.
type Workspace struct {
	// FailedSlots maps failed concept names to their failure reason.
	FailedSlots map[string]string

	// Cursors maps looping inference addresses to the next element index.
	Cursors map[string]int

	// Accumulators maps looping inference addresses to the per-iteration
	// results gathered so far.
	Accumulators map[string][]any

	// Params is the perception parameter table as of the checkpoint, so
	// param signs still perceive after a process restart.
	Params map[string]string
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{
		FailedSlots:  make(map[string]string),
		Cursors:      make(map[string]int),
		Accumulators: make(map[string][]any),
		Params:       make(map[string]string),
	}
}

// Snapshot returns the JSON-friendly checkpoint form.
func (w *Workspace) Snapshot() map[string]any {
	failures := make(map[string]any, len(w.FailedSlots))
	for k, v := range w.FailedSlots {
		failures[k] = v
	}
	cursors := make(map[string]any, len(w.Cursors))
	for k, v := range w.Cursors {
		cursors[k] = v
	}
	accumulators := make(map[string]any, len(w.Accumulators))
	for k, v := range w.Accumulators {
		accumulators[k] = v
	}
	params := make(map[string]any, len(w.Params))
	for k, v := range w.Params {
		params[k] = v
	}
	return map[string]any{
		"failures":     failures,
		"cursors":      cursors,
		"accumulators": accumulators,
		"params":       params,
	}
}

// RestoreWorkspace rebuilds a workspace from its checkpoint form. Numbers
// come back from JSON as float64 and are coerced here.
func RestoreWorkspace(snap map[string]any) *Workspace {
	w := NewWorkspace()
	if failures, ok := snap["failures"].(map[string]any); ok {
		for k, v := range failures {
			if s, ok := v.(string); ok {
				w.FailedSlots[k] = s
			}
		}
	}
	if cursors, ok := snap["cursors"].(map[string]any); ok {
		for k, v := range cursors {
			switch n := v.(type) {
			case float64:
				w.Cursors[k] = int(n)
			case int:
				w.Cursors[k] = n
			}
		}
	}
	if accumulators, ok := snap["accumulators"].(map[string]any); ok {
		for k, v := range accumulators {
			if list, ok := v.([]any); ok {
				w.Accumulators[k] = list
			}
		}
	}
	if params, ok := snap["params"].(map[string]any); ok {
		for k, v := range params {
			if s, ok := v.(string); ok {
				w.Params[k] = s
			}
		}
	}
	return w
}
