package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"normcode/internal/actuator"
	"normcode/internal/checkpoint"
	"normcode/internal/config"
	"normcode/internal/engine"
	"normcode/internal/perception"
	"normcode/internal/plan"
)

var (
	runRepoDir string
	runID      string
	runInputs  []string

	resumeCycle int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute activated repositories from the start",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng, store, err := buildEngine(cfg, runRepoDir)
		if err != nil {
			return err
		}
		defer store.Close()

		inputs, err := parseInputs(runInputs)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		outcome, err := eng.Run(ctx, runID, inputs)
		if err != nil {
			return err
		}
		reportOutcome(outcome)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Continue a checkpointed run",
	Long: `Resume loads a recorded snapshot and continues selection from there.
Inferences committed before the snapshot are never re-actuated; failed ones
get a fresh attempt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng, store, err := buildEngine(cfg, runRepoDir)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		outcome, err := eng.Resume(ctx, args[0], resumeCycle)
		if err != nil {
			return err
		}
		reportOutcome(outcome)
		return nil
	},
}

// buildEngine wires the full runtime: repositories, path map, codec, LLM
// client, actuator registry, and checkpoint store.
func buildEngine(cfg *config.Config, repoDir string) (*engine.Engine, *checkpoint.Store, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, nil, err
	}

	repos, err := plan.Load(repoDir)
	if err != nil {
		return nil, nil, err
	}

	paths := perception.NewPathMap(cfg.Paths, root)
	codec := perception.NewCodec(paths)

	llm, err := actuator.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	registry := actuator.NewDefaultRegistry(cfg, actuator.NewParadigmActuator(llm, paths))

	dbPath := cfg.Checkpoint.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}
	store, err := checkpoint.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(repos, codec, paths, registry, store, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return eng, store, nil
}

// parseInputs decodes --input name=value pairs; values parse as JSON when
// they can, and stay strings otherwise.
func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --input %q: want name=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		inputs[name] = v
	}
	return inputs, nil
}

func reportOutcome(out *engine.Outcome) {
	logger.Info("run finished",
		zap.String("run_id", out.RunID),
		zap.Bool("completed", out.Completed),
		zap.Int("cycles", out.Cycles),
		zap.Int("failures", len(out.Failures)))

	if out.Completed {
		final, _ := json.Marshal(out.Final)
		fmt.Printf("Run %s completed in %d cycles\n%s = %s\n",
			out.RunID, out.Cycles, out.FinalName, final)
		return
	}

	fmt.Printf("Run %s stopped after %d cycles without committing %q\n",
		out.RunID, out.Cycles, out.FinalName)
	for name, reason := range out.Failures {
		fmt.Printf("  %s: %s\n", name, reason)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, resumeCmd} {
		cmd.Flags().StringVarP(&runRepoDir, "repos", "r", "activated", "Directory holding the activated repositories")
	}
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (generated when empty)")
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "Seed a ground concept: name=value (JSON or string)")
	resumeCmd.Flags().IntVar(&resumeCycle, "cycle", 0, "Cycle to resume from (0 = latest)")
}
