package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"normcode/internal/activation"
	"normcode/internal/actuator"
	"normcode/internal/checkpoint"
	"normcode/internal/config"
	"normcode/internal/perception"
	"normcode/internal/plan"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeParadigm stands in for the LLM-backed actuator and records every
// actuation by flow address.
type fakeParadigm struct {
	mu    sync.Mutex
	calls []string
	fn    func(req *actuator.Request) (any, error)
}

func (f *fakeParadigm) Name() string { return "paradigm" }

func (f *fakeParadigm) Actuate(_ context.Context, req *actuator.Request) (*actuator.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Address.String())
	f.mu.Unlock()

	v, err := f.fn(req)
	if err != nil {
		return nil, err
	}
	return &actuator.Result{Value: v}, nil
}

func (f *fakeParadigm) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func doubler(req *actuator.Request) (any, error) {
	n, ok := req.Values[0].Data.(float64)
	if !ok {
		return nil, fmt.Errorf("want a number, got %T", req.Values[0].Data)
	}
	return n * 2, nil
}

func echo(req *actuator.Request) (any, error) {
	return req.Values[0].Data, nil
}

func testEngine(t *testing.T, repos *plan.Repositories, fake *fakeParadigm, store *checkpoint.Store) *Engine {
	t.Helper()
	cfg := config.Default()
	paths := perception.NewPathMap(cfg.Paths, t.TempDir())
	codec := perception.NewCodec(paths)

	registry := actuator.NewRegistry()
	registry.MustRegister(fake)

	e, err := New(repos, codec, paths, registry, store, cfg)
	require.NoError(t, err)
	return e
}

func activate(t *testing.T, tree *activation.Tree) *plan.Repositories {
	t.Helper()
	repos, err := activation.Activate(tree, activation.Options{})
	require.NoError(t, err)
	return repos
}

func testStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func doubleTree() *activation.Tree {
	return &activation.Tree{
		Plan: "double-x",
		Root: "y",
		Nodes: []*activation.Node{
			{Address: "1", Kind: activation.NodeInference, SequenceType: "imperative",
				Function: "double", Paradigm: "double", Output: "y"},
			{Address: "1.1", Kind: activation.NodeValue, Name: "x", Input: true,
				Value: float64(5), Order: 1},
		},
	}
}

func TestRunSingleImperative(t *testing.T) {
	repos := activate(t, doubleTree())
	fake := &fakeParadigm{fn: doubler}
	store := testStore(t)
	e := testEngine(t, repos, fake, store)

	out, err := e.Run(context.Background(), "run-a", nil)
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Equal(t, float64(10), out.Final)
	require.Equal(t, 1, out.Cycles)
	require.Equal(t, []string{"1"}, fake.callList())

	snap, err := store.Latest("run-a")
	require.NoError(t, err)
	require.True(t, snap.Completed)
	require.Equal(t, []string{"1"}, snap.Tracker)
	require.Equal(t, []string{"x", "y"}, snap.CompletedConcepts)
	require.Equal(t, float64(10), snap.Blackboard["y"])

	run, err := store.GetRun("run-a")
	require.NoError(t, err)
	require.Equal(t, checkpoint.RunCompleted, run.Status)
}

func timingTree(flag bool) *activation.Tree {
	return &activation.Tree{
		Plan: "gated",
		Root: "y",
		Nodes: []*activation.Node{
			{Address: "1", Kind: activation.NodeInference, SequenceType: "timing",
				Function: "gate", Marker: "if", Output: "go"},
			{Address: "1.1", Kind: activation.NodeValue, Name: "flag", Input: true, Value: flag},
			{Address: "2", Kind: activation.NodeInference, SequenceType: "imperative",
				Function: "use", Paradigm: "use", Output: "y"},
			{Address: "2.1", Kind: activation.NodeValue, Name: "go", Order: 1},
		},
	}
}

func TestClosedTimingGateBlocksDependent(t *testing.T) {
	repos := activate(t, timingTree(false))
	fake := &fakeParadigm{fn: echo}
	e := testEngine(t, repos, fake, nil)

	out, err := e.Run(context.Background(), "", nil)
	require.NoError(t, err)
	require.False(t, out.Completed)
	require.Nil(t, out.Final)
	require.Empty(t, fake.callList(), "the gated inference must never actuate")
}

func TestOpenTimingGatePassesThrough(t *testing.T) {
	repos := activate(t, timingTree(true))
	fake := &fakeParadigm{fn: echo}
	e := testEngine(t, repos, fake, nil)

	out, err := e.Run(context.Background(), "", nil)
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Equal(t, true, out.Final)
	require.Equal(t, []string{"2"}, fake.callList())
}

// chainTree is five imperative steps in a row: x0 -> x1 -> ... -> x5.
func chainTree() *activation.Tree {
	tree := &activation.Tree{Plan: "chain", Root: "x5"}
	for i := 1; i <= 5; i++ {
		tree.Nodes = append(tree.Nodes, &activation.Node{
			Address: fmt.Sprintf("%d", i), Kind: activation.NodeInference,
			SequenceType: "imperative", Function: "inc", Paradigm: "inc",
			Output: fmt.Sprintf("x%d", i),
		})
		child := &activation.Node{
			Address: fmt.Sprintf("%d.1", i), Kind: activation.NodeValue,
			Name: fmt.Sprintf("x%d", i-1), Order: 1,
		}
		if i == 1 {
			child.Input = true
			child.Value = float64(1)
		}
		tree.Nodes = append(tree.Nodes, child)
	}
	return tree
}

func inc(req *actuator.Request) (any, error) {
	return req.Values[0].Data.(float64) + 1, nil
}

func TestResumeNeverReactuatesCommitted(t *testing.T) {
	repos := activate(t, chainTree())
	store := testStore(t)

	// First attempt: step 4 fails, so x4 and x5 never commit.
	failing := &fakeParadigm{fn: func(req *actuator.Request) (any, error) {
		if req.Address.String() == "4" {
			return nil, fmt.Errorf("transient backend failure")
		}
		return inc(req)
	}}
	e1 := testEngine(t, repos, failing, store)
	out1, err := e1.Run(context.Background(), "run-c", nil)
	require.NoError(t, err)
	require.False(t, out1.Completed)
	require.Contains(t, out1.Failures, "x4")
	require.Equal(t, []string{"1", "2", "3", "4"}, failing.callList())

	// Resume with a healthy backend: only the uncommitted steps actuate.
	healthy := &fakeParadigm{fn: inc}
	e2 := testEngine(t, repos, healthy, store)
	out2, err := e2.Resume(context.Background(), "run-c", 0)
	require.NoError(t, err)
	require.True(t, out2.Completed)
	require.Equal(t, float64(6), out2.Final)
	require.Equal(t, []string{"4", "5"}, healthy.callList())

	run, err := store.GetRun("run-c")
	require.NoError(t, err)
	require.Equal(t, checkpoint.RunCompleted, run.Status)
}

func TestResumeAtSpecificCycle(t *testing.T) {
	repos := activate(t, chainTree())
	store := testStore(t)

	first := &fakeParadigm{fn: inc}
	e1 := testEngine(t, repos, first, store)
	_, err := e1.Run(context.Background(), "run-d", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, first.callList())

	snap, err := store.At("run-d", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, snap.Tracker)
	require.Equal(t, float64(4), snap.Blackboard["x3"])

	// Resuming from cycle 3 re-actuates only steps 4 and 5.
	healthy := &fakeParadigm{fn: inc}
	e2 := testEngine(t, repos, healthy, store)
	out, err := e2.Resume(context.Background(), "run-d", 3)
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Equal(t, float64(6), out.Final)
	require.Equal(t, []string{"4", "5"}, healthy.callList())

	// The log stays append-only: replayed cycles land after the recorded
	// history instead of colliding with cycles 4 and 5.
	snaps, err := store.ListCheckpoints("run-d")
	require.NoError(t, err)
	require.Len(t, snaps, 7)
	require.Equal(t, 7, snaps[6].Cycle)
	require.True(t, snaps[6].Completed)
}

func TestFailedResumeKeepsCompletedStatus(t *testing.T) {
	repos := activate(t, chainTree())
	store := testStore(t)

	e1 := testEngine(t, repos, &fakeParadigm{fn: inc}, store)
	_, err := e1.Run(context.Background(), "run-e", nil)
	require.NoError(t, err)

	// Replay from mid-history against a broken backend: the replay fails,
	// but the run's recorded success stays.
	failing := &fakeParadigm{fn: func(req *actuator.Request) (any, error) {
		return nil, fmt.Errorf("backend down")
	}}
	e2 := testEngine(t, repos, failing, store)
	out, err := e2.Resume(context.Background(), "run-e", 3)
	require.NoError(t, err)
	require.False(t, out.Completed)

	run, err := store.GetRun("run-e")
	require.NoError(t, err)
	require.Equal(t, checkpoint.RunCompleted, run.Status)
}

func TestSameSnapshotSameSelection(t *testing.T) {
	repos := activate(t, chainTree())
	store := testStore(t)

	e := testEngine(t, repos, &fakeParadigm{fn: inc}, store)
	_, err := e.Run(context.Background(), "run-f", nil)
	require.NoError(t, err)

	snap, err := store.At("run-f", 3)
	require.NoError(t, err)

	selection := func() []string {
		state := e.restoreState(snap)
		ready, blocked := e.selectReady(state)
		require.Empty(t, blocked)
		var addrs []string
		for _, inf := range ready {
			addrs = append(addrs, inf.Address.String())
		}
		return addrs
	}

	first := selection()
	second := selection()
	require.Equal(t, []string{"4"}, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("restoring the same snapshot twice selected differently (-first +second):\n%s", diff)
	}
}

func TestResumeRestoresStoredParams(t *testing.T) {
	repos := activate(t, doubleTree())
	store := testStore(t)

	e1 := testEngine(t, repos, &fakeParadigm{fn: doubler}, store)
	e1.paths.SetParam("model_hint", "fast")
	_, err := e1.Run(context.Background(), "run-g", nil)
	require.NoError(t, err)

	// A fresh engine (fresh process, empty path map) gets the table back
	// from the checkpoint.
	e2 := testEngine(t, repos, &fakeParadigm{fn: doubler}, store)
	_, ok := e2.paths.Param("model_hint")
	require.False(t, ok)

	_, err = e2.Resume(context.Background(), "run-g", 0)
	require.NoError(t, err)
	v, ok := e2.paths.Param("model_hint")
	require.True(t, ok)
	require.Equal(t, "fast", v)
}

func TestReplayIdempotence(t *testing.T) {
	repos := activate(t, chainTree())
	store := testStore(t)

	for _, runID := range []string{"run-1", "run-2"} {
		fake := &fakeParadigm{fn: inc}
		e := testEngine(t, repos, fake, store)
		out, err := e.Run(context.Background(), runID, nil)
		require.NoError(t, err)
		require.True(t, out.Completed)
	}

	first, err := store.Latest("run-1")
	require.NoError(t, err)
	second, err := store.Latest("run-2")
	require.NoError(t, err)
	if diff := cmp.Diff(first.Signatures, second.Signatures); diff != "" {
		t.Errorf("identical runs produced different signatures (-run1 +run2):\n%s", diff)
	}
}

func groupedTree() *activation.Tree {
	return &activation.Tree{
		Plan: "grouped",
		Root: "summary",
		Nodes: []*activation.Node{
			{Address: "1", Kind: activation.NodeInference, SequenceType: "grouping",
				Function: "collect", Marker: "in", Output: "chapters",
				Group: &activation.GroupAnnotation{AxisConcepts: []string{"chapter"}}},
			{Address: "1.1", Kind: activation.NodeValue, Name: "title", Input: true,
				Value: "Moby Dick", Order: 1},
			{Address: "1.2", Kind: activation.NodeValue, Name: "body", Input: true,
				Value: "Call me Ishmael.", Order: 2},
			{Address: "2", Kind: activation.NodeInference, SequenceType: "imperative",
				Function: "summarize", Paradigm: "summarize", Output: "summary"},
			{Address: "2.1", Kind: activation.NodeValue, Name: "chapters", Order: 1,
				Select: &activation.SelectAnnotation{Key: "title"}},
		},
	}
}

func TestValueSelectorExtractsGroupMember(t *testing.T) {
	repos := activate(t, groupedTree())
	fake := &fakeParadigm{fn: echo}
	e := testEngine(t, repos, fake, nil)

	out, err := e.Run(context.Background(), "", nil)
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Equal(t, "Moby Dick", out.Final, "only the selected key reaches the actuator")
}

func loopTree() *activation.Tree {
	return &activation.Tree{
		Plan: "loop",
		Root: "results",
		Nodes: []*activation.Node{
			{Address: "1", Kind: activation.NodeInference, SequenceType: "looping",
				Function: "iterate", Output: "results",
				Loop: &activation.LoopAnnotation{
					Index: "i", Base: "items", Infer: []string{"doubled"},
				}},
			{Address: "1.1", Kind: activation.NodeValue, Name: "items", Input: true,
				Value: []any{float64(1), float64(2), float64(3)}},
			{Address: "2", Kind: activation.NodeInference, SequenceType: "imperative",
				Function: "double", Paradigm: "double", Output: "doubled"},
			{Address: "2.1", Kind: activation.NodeValue, Name: "items_i", Order: 1},
		},
	}
}

func TestLoopIteratesPerElement(t *testing.T) {
	repos := activate(t, loopTree())
	fake := &fakeParadigm{fn: doubler}
	e := testEngine(t, repos, fake, nil)

	out, err := e.Run(context.Background(), "", nil)
	require.NoError(t, err)
	require.True(t, out.Completed)

	want := []any{float64(2), float64(4), float64(6)}
	if diff := cmp.Diff(want, out.Final); diff != "" {
		t.Errorf("loop results mismatch (-want +got):\n%s", diff)
	}
	// The body actuated once per element.
	require.Equal(t, []string{"2", "2", "2"}, fake.callList())
}

func TestCancelledContextStopsRun(t *testing.T) {
	repos := activate(t, chainTree())
	fake := &fakeParadigm{fn: inc}
	e := testEngine(t, repos, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, "", nil)
	require.ErrorIs(t, err, context.Canceled)
}
