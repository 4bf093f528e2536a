package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"normcode/internal/activation"
	"normcode/internal/perception"
)

var (
	activateOut      string
	activateValidate bool
)

var activateCmd = &cobra.Command{
	Use:   "activate [plan-tree.json]",
	Short: "Compile an annotated plan tree into executable repositories",
	Long: `Activation turns one annotated plan tree into two linked artifacts:
a concept repository and an inference repository. Any structural, resource,
or consistency error aborts the whole activation; nothing partial is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root, err := workspaceRoot()
		if err != nil {
			return err
		}

		tree, err := activation.LoadTree(args[0])
		if err != nil {
			return err
		}

		opts := activation.Options{}
		if activateValidate {
			paths := perception.NewPathMap(cfg.Paths, root)
			opts.Codec = perception.NewCodec(paths)
		}

		repos, err := activation.Activate(tree, opts)
		if err != nil {
			return fmt.Errorf("activation failed: %w", err)
		}

		if err := repos.Save(activateOut); err != nil {
			return err
		}

		logger.Info("activation complete",
			zap.String("plan", tree.Plan),
			zap.Int("concepts", len(repos.Concepts)),
			zap.Int("inferences", len(repos.Inferences)),
			zap.String("out", activateOut))
		fmt.Printf("Activated %q: %d concepts, %d inferences -> %s\n",
			tree.Plan, len(repos.Concepts), len(repos.Inferences), activateOut)
		return nil
	},
}

func init() {
	activateCmd.Flags().StringVarP(&activateOut, "out", "o", "activated", "Output directory for the repositories")
	activateCmd.Flags().BoolVar(&activateValidate, "validate", true, "Eagerly validate referenced resources")
}
