package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for xmlc.
// Run without a subcommand it compiles the given root directory.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xmlc [root]",
		Short: "Compile XML documents by resolving #include directives",
		Long: `xmlc compiles XML documents assembled from fragments.

Every file two levels below the root whose name matches the file pattern
(default: a single digit, an underscore and an .xml extension, e.g.
sub/1_main.xml) is expanded: <!-- #include file="part.xml" --> directives
are replaced by the referenced file, recursively, with paths resolved
against the including file's directory. The result is flattened to a
single line and written to the output directory (default: <root>/compiled).

Configuration is loaded from <root>/.xmlc/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  xmlc                          # Compile the current directory
  xmlc ./documents              # Compile another root
  xmlc --dry-run ./documents    # List the files that would be compiled
  xmlc --wrap-mode placeholder  # Wrap <placeholder> blocks in CDATA
  xmlc tree ./documents         # Show include trees
  xmlc watch ./documents        # Recompile on change
  xmlc history                  # Show recorded runs`,
		Version: Version,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "List the files that would be compiled without writing output")
	cmd.Flags().Bool("fail-on-error", false, "Exit non-zero when any file fails to compile")

	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewTreeCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
