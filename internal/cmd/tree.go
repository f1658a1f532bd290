package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvy1/kvy-xmls/internal/display"
	"github.com/kvy1/kvy-xmls/internal/executor"
)

// NewTreeCommand creates the tree command
func NewTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [root]",
		Short: "Show the include tree of every root document",
		Long: `Show the include tree of every root document without writing output.

Unresolved includes are labelled (missing), (cycle) or (failed).

Examples:
  xmlc tree
  xmlc tree ./documents --max-depth 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTree,
	}

	addConfigFlags(cmd)

	return cmd
}

func runTree(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}

	batch := executor.NewBatch(executor.OptionsFromConfig(cfg, root), nil)
	files, err := batch.Discover(root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(out, "No XML files found to process.")
		return nil
	}

	render := display.IncludeTree
	if display.IsTerminal(out) {
		render = display.IncludeTreeColor
	}

	for i, f := range files {
		if i > 0 {
			fmt.Fprintln(out)
		}
		res, err := batch.Expander().ExpandFile(f)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", f, err)
			continue
		}
		fmt.Fprint(out, render(res.Tree, root))
	}
	return nil
}
