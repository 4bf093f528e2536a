package activation

import (
	"normcode/internal/logging"
	"normcode/internal/perception"
	"normcode/internal/plan"
)

// Options controls optional activation behavior.
type Options struct {
	// Codec enables eager compile-time resource validation: every paradigm,
	// prompt, data, and script reference is checked for existence before the
	// repositories are emitted. Nil skips the check (resources surface at
	// first use instead).
	Codec *perception.Codec
}

// Activate compiles an annotated plan tree into the concept and inference
// repositories. Any structural, consistency, or (when eager) resource error
// aborts the whole activation; a partial repository is never returned.
func Activate(tree *Tree, opts Options) (*plan.Repositories, error) {
	timer := logging.StartTimer(logging.CategoryActivation, "Activate")
	defer timer.Stop()

	logging.Activation("Activating plan %q: %d nodes", tree.Plan, len(tree.Nodes))

	idx, err := buildIndex(tree)
	if err != nil {
		return nil, err
	}

	table, err := buildConceptTable(idx)
	if err != nil {
		return nil, err
	}

	inferences, err := buildInferenceTable(idx, table)
	if err != nil {
		return nil, err
	}

	repos := &plan.Repositories{
		Concepts:   table.list(),
		Inferences: inferences,
	}
	repos.SortInferences()

	if err := repos.Validate(); err != nil {
		return nil, err
	}

	if opts.Codec != nil {
		if err := opts.Codec.ValidateResources(repos); err != nil {
			return nil, err
		}
	}

	logging.Activation("Activation complete: %d concepts, %d inferences",
		len(repos.Concepts), len(repos.Inferences))
	return repos, nil
}
