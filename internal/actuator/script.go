package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"normcode/internal/logging"
)

// ScriptActuator runs a plan-referenced script with the perceived inputs on
// stdin (a JSON array in value_order) and the result on stdout. The
// interpreter is chosen by file extension from a fixed allowlist.
type ScriptActuator struct {
	timeout      time.Duration
	interpreters map[string]string
}

// NewScriptActuator builds the script runner. timeout bounds each run when
// the caller's context carries no deadline of its own.
func NewScriptActuator(timeout time.Duration) *ScriptActuator {
	return &ScriptActuator{
		timeout: timeout,
		interpreters: map[string]string{
			".py": "python3",
			".sh": "bash",
			".js": "node",
		},
	}
}

func (a *ScriptActuator) Name() string { return "script" }

// Actuate executes the script and decodes its stdout.
func (a *ScriptActuator) Actuate(ctx context.Context, req *Request) (*Result, error) {
	ext := filepath.Ext(req.Script)
	interpreter, ok := a.interpreters[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInterpreterNotAllowed, ext)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	inputs := make([]any, len(req.Values))
	for i, v := range req.Values {
		inputs[i] = v.Data
	}
	stdin, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode script inputs: %w", err)
	}

	logging.ActuationDebug("Running script %s (%s) with %d inputs",
		req.Script, interpreter, len(req.Values))

	cmd := exec.CommandContext(ctx, interpreter, req.Script)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("script %s failed: %w (stderr: %s)",
			req.Script, err, stderr.String())
	}

	raw := stdout.String()
	return &Result{Value: decodeLoose(raw), Raw: raw}, nil
}
