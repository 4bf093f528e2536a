// Package engine executes an activated plan cycle by cycle: select the
// inferences whose dependencies are committed, perceive their inputs,
// actuate, commit the results to the blackboard, and checkpoint. The run
// terminates when the final concept commits or nothing is selectable.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"normcode/internal/actuator"
	"normcode/internal/checkpoint"
	"normcode/internal/config"
	"normcode/internal/logging"
	"normcode/internal/perception"
	"normcode/internal/plan"
)

// Engine drives one activated plan. It owns the blackboard; actuators and
// the codec are shared, read-only collaborators.
type Engine struct {
	repos    *plan.Repositories
	codec    *perception.Codec
	paths    *perception.PathMap
	registry *actuator.Registry
	store    *checkpoint.Store // nil disables checkpointing

	planName    string
	finalName   string
	workers     int
	callTimeout time.Duration
	retries     int
}

// Outcome summarizes a finished (or stalled) run.
type Outcome struct {
	RunID     string
	Cycles    int
	Completed bool
	FinalName string
	Final     any
	Failures  map[string]string
}

// New builds an engine over validated repositories.
func New(repos *plan.Repositories, codec *perception.Codec, paths *perception.PathMap,
	registry *actuator.Registry, store *checkpoint.Store, cfg *config.Config) (*Engine, error) {

	if err := repos.Validate(); err != nil {
		return nil, err
	}

	finalName := ""
	for i := range repos.Concepts {
		if repos.Concepts[i].Final {
			finalName = repos.Concepts[i].Name
			break
		}
	}
	if finalName == "" {
		return nil, fmt.Errorf("repositories declare no final concept")
	}

	callTimeout, err := cfg.CallTimeout()
	if err != nil {
		return nil, err
	}

	return &Engine{
		repos:       repos,
		codec:       codec,
		paths:       paths,
		registry:    registry,
		store:       store,
		planName:    cfg.Name,
		finalName:   finalName,
		workers:     cfg.Engine.Workers,
		callTimeout: callTimeout,
		retries:     cfg.Engine.Retries,
	}, nil
}

// runState is the mutable state of one run.
type runState struct {
	bb      *Blackboard
	ws      *Workspace
	tracker map[string]bool // completed inference addresses
	cycle   int
}

func (e *Engine) newRunState() *runState {
	state := &runState{
		bb:      NewBlackboard(),
		ws:      NewWorkspace(),
		tracker: make(map[string]bool),
	}
	for i := range e.repos.Concepts {
		c := &e.repos.Concepts[i]
		if c.Ground && c.InitialValue != nil {
			state.bb.Commit(c.Name, c.InitialValue)
		}
	}
	return state
}

// Run executes the plan from the start. inputs seed ground concepts that
// carry no initial value in the repository.
func (e *Engine) Run(ctx context.Context, runID string, inputs map[string]any) (*Outcome, error) {
	if runID == "" {
		runID = checkpoint.NewRunID()
	}

	state := e.newRunState()
	for name, value := range inputs {
		state.bb.Commit(name, value)
	}

	if e.store != nil {
		if err := e.store.CreateRun(runID, e.planName); err != nil {
			return nil, err
		}
	}

	logging.Engine("Run %s starting: %d inferences, %d workers",
		runID, len(e.repos.Inferences), e.workers)
	return e.loop(ctx, runID, state)
}

// Resume continues a checkpointed run. cycle <= 0 resumes from the latest
// snapshot. Inferences recorded in the tracker are never re-actuated. New
// checkpoints continue after the run's last recorded cycle: the log is
// append-only, so a mid-history resume must not collide with later entries.
func (e *Engine) Resume(ctx context.Context, runID string, cycle int) (*Outcome, error) {
	if e.store == nil {
		return nil, fmt.Errorf("resume requires a checkpoint store")
	}

	latest, err := e.store.Latest(runID)
	if err != nil {
		return nil, err
	}
	snap := latest
	if cycle > 0 && cycle != latest.Cycle {
		if snap, err = e.store.At(runID, cycle); err != nil {
			return nil, err
		}
	}

	state := e.restoreState(snap)
	state.cycle = latest.Cycle

	logging.Engine("Run %s resuming from cycle %d (%d committed inferences)",
		runID, snap.Cycle, len(snap.Tracker))
	return e.loop(ctx, runID, state)
}

// restoreState rebuilds run state from a snapshot. Committed results are
// restored as-is; failed slots are dropped so the resumed run gets a fresh
// attempt at them. Stored perception parameters go back into the path map.
func (e *Engine) restoreState(snap *checkpoint.Snapshot) *runState {
	state := &runState{
		bb:      NewBlackboard(),
		ws:      RestoreWorkspace(snap.Workspace),
		tracker: make(map[string]bool, len(snap.Tracker)),
		cycle:   snap.Cycle,
	}
	state.bb.Restore(snap.Blackboard, nil, nil)
	state.ws.FailedSlots = make(map[string]string)
	for _, addr := range snap.Tracker {
		state.tracker[addr] = true
	}
	for name, value := range state.ws.Params {
		e.paths.SetParam(name, value)
	}
	return state
}

func (e *Engine) loop(ctx context.Context, runID string, state *runState) (*Outcome, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "run "+runID)
	defer timer.Stop()

	completed := state.bb.IsCommitted(e.finalName)

	for !completed {
		if err := ctx.Err(); err != nil {
			e.finish(runID, state, false)
			return e.outcome(runID, state, false), err
		}

		ready, blocked := e.selectReady(state)
		for _, inf := range blocked {
			reason := fmt.Sprintf("blocked at %s: upstream failure", inf.Address)
			state.bb.Fail(inf.OutputConcept, reason)
			state.ws.FailedSlots[inf.OutputConcept] = reason
			logging.EngineDebug("Inference %s blocked by failed dependency", inf.Address)
		}
		if len(ready) == 0 && len(blocked) == 0 {
			break
		}

		state.cycle++
		logging.EngineDebug("Cycle %d: %d ready, %d blocked", state.cycle, len(ready), len(blocked))

		var operators, semantic []*plan.Inference
		for _, inf := range ready {
			switch inf.SequenceType {
			case plan.SeqImperative, plan.SeqJudgement:
				semantic = append(semantic, inf)
			default:
				operators = append(operators, inf)
			}
		}

		for _, inf := range operators {
			if err := e.executeOperator(state, inf); err != nil {
				e.recordFailure(state, inf, err)
			}
		}

		e.actuateAll(ctx, state, semantic)

		if err := e.appendCheckpoint(runID, state); err != nil {
			e.finish(runID, state, false)
			return e.outcome(runID, state, false), err
		}

		completed = state.bb.IsCommitted(e.finalName)
	}

	e.finish(runID, state, completed)
	logging.Engine("Run %s finished: completed=%v cycles=%d failures=%d",
		runID, completed, state.cycle, len(state.ws.FailedSlots))
	return e.outcome(runID, state, completed), nil
}

// actuateAll runs the cycle's semantic inferences in parallel, bounded by the
// worker limit. Results commit after all workers return; only this goroutine
// writes the blackboard.
func (e *Engine) actuateAll(ctx context.Context, state *runState, semantic []*plan.Inference) {
	if len(semantic) == 0 {
		return
	}

	type actuation struct {
		value any
		err   error
	}
	results := make([]actuation, len(semantic))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, inf := range semantic {
		g.Go(func() error {
			value, err := e.actuate(gctx, state, inf)
			results[i] = actuation{value: value, err: err}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures land in results

	for i, inf := range semantic {
		if results[i].err != nil {
			e.recordFailure(state, inf, results[i].err)
			continue
		}
		state.bb.Commit(inf.OutputConcept, results[i].value)
		state.tracker[inf.Address.String()] = true
	}
}

// actuate resolves one inference's function and horizontal inputs, runs the
// actuator, and formats the result per the declared output shape.
func (e *Engine) actuate(ctx context.Context, state *runState, inf *plan.Inference) (any, error) {
	spec := imperativePayload(inf)

	values, err := e.resolveInputs(state, spec)
	if err != nil {
		return nil, err
	}

	req := &actuator.Request{
		Address: inf.Address,
		Output:  inf.OutputConcept,
		Values:  values,
	}

	name := "paradigm"
	if inf.SequenceType == plan.SeqJudgement {
		name = "judgement"
	}
	if fn := e.repos.Concept(inf.FunctionConcept); fn != nil && fn.HasInitialSign() {
		sign, err := plan.ParseSign(fn.InitialValue.(string))
		if err == nil && sign.Tag == plan.TagScript {
			path, err := e.paths.Resolve(plan.TagScript, sign.Payload)
			if err != nil {
				return nil, err
			}
			name = "script"
			req.Script = path
		}
	}
	if name != "script" {
		req.Paradigm = spec.Paradigm
	}
	if !e.registry.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrNoActuator, name)
	}

	var result *actuator.Result
	for attempt := 0; attempt <= e.retries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		result, err = e.registry.Actuate(callCtx, name, req)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break // the run is cancelled; do not burn retries
		}
		if attempt < e.retries {
			logging.EngineDebug("Retrying %s at %s (attempt %d): %v",
				name, inf.Address, attempt+2, err)
		}
	}
	if err != nil {
		return nil, err
	}

	if spec.OutputShape != "" {
		sign, err := e.codec.Format(result.Value, spec.OutputShape)
		if err != nil {
			return nil, err
		}
		return sign, nil
	}
	return result.Value, nil
}

// resolveInputs assembles the horizontal inputs in value_order position.
func (e *Engine) resolveInputs(state *runState, spec *plan.ImperativeSpec) ([]actuator.Value, error) {
	names := make([]string, 0, len(spec.ValueOrder))
	for name := range spec.ValueOrder {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return spec.ValueOrder[names[i]] < spec.ValueOrder[names[j]]
	})

	values := make([]actuator.Value, 0, len(names))
	for _, name := range names {
		v, err := e.resolveInput(state, spec, name)
		if err != nil {
			return nil, err
		}
		values = append(values, actuator.Value{Name: name, Data: v})
	}
	return values, nil
}

func (e *Engine) resolveInput(state *runState, spec *plan.ImperativeSpec, name string) (any, error) {
	if sel, ok := spec.ValueSelectors[name]; ok {
		raw, ok := state.bb.Get(sel.SourceConcept)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingValue, sel.SourceConcept)
		}
		if sel.Branch != "post" {
			perceived, err := e.codec.Perceive(raw)
			if err != nil {
				return nil, err
			}
			return applySelector(perceived, sel)
		}
		selected, err := applySelector(raw, sel)
		if err != nil {
			return nil, err
		}
		return e.codec.Perceive(selected)
	}

	if fixed, ok := spec.Values[name]; ok {
		return e.codec.Perceive(fixed)
	}

	raw, ok := state.bb.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingValue, name)
	}
	return e.codec.Perceive(raw)
}

// recordFailure marks the output slot failed. The inference is deliberately
// not added to the tracker: failures are retryable on resume, only committed
// results are immutable.
func (e *Engine) recordFailure(state *runState, inf *plan.Inference, err error) {
	reason := err.Error()
	state.bb.Fail(inf.OutputConcept, reason)
	state.ws.FailedSlots[inf.OutputConcept] = reason
	logging.Get(logging.CategoryEngine).Error("Inference %s failed: %v", inf.Address, err)
}

func (e *Engine) appendCheckpoint(runID string, state *runState) error {
	if e.store == nil {
		return nil
	}

	tracker := make([]string, 0, len(state.tracker))
	for addr := range state.tracker {
		tracker = append(tracker, addr)
	}
	sort.Strings(tracker)

	committed := state.bb.Snapshot()
	concepts := make([]string, 0, len(committed))
	signatures := make(map[string]string, len(committed))
	for name, value := range committed {
		concepts = append(concepts, name)
		signatures[name] = signature(value)
	}
	sort.Strings(concepts)

	state.ws.Params = e.paths.Params()

	return e.store.Append(&checkpoint.Snapshot{
		RunID:             runID,
		Cycle:             state.cycle,
		Blackboard:        committed,
		Workspace:         state.ws.Snapshot(),
		Tracker:           tracker,
		CompletedConcepts: concepts,
		Completed:         state.bb.IsCommitted(e.finalName),
		Signatures:        signatures,
	})
}

func (e *Engine) finish(runID string, state *runState, completed bool) {
	if e.store == nil {
		return
	}
	status := checkpoint.RunFailed
	if completed {
		status = checkpoint.RunCompleted
	}
	if err := e.store.FinishRun(runID, status); err != nil {
		logging.Get(logging.CategoryEngine).Warn("Failed to record run status: %v", err)
	}
}

func (e *Engine) outcome(runID string, state *runState, completed bool) *Outcome {
	out := &Outcome{
		RunID:     runID,
		Cycles:    state.cycle,
		Completed: completed,
		FinalName: e.finalName,
		Failures:  state.ws.FailedSlots,
	}
	if v, ok := state.bb.Get(e.finalName); ok {
		out.Final = v
	}
	return out
}

// signature is the content hash of a committed value, recorded in every
// checkpoint so replays can be compared byte-for-byte.
func signature(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "unhashable"
	}
	return fmt.Sprintf("sha256:%x", sha256.Sum256(encoded))
}
