package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/firnlab/firn/pkg/masked"
	"github.com/firnlab/firn/pkg/repo"
)

var (
	treeDepth  int
	treeFormat string
)

var treeCmd = &cobra.Command{
	Use:   "tree <path>...",
	Short: "Load one or more paths and print their tree",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tDIM\tSHAPE\tTYPE\tERROR")
		for _, arg := range args {
			handle, err := s.load(arg, treeFormat)
			if err != nil {
				return err
			}
			it, err := s.store.Resolve(handle)
			if err != nil {
				return err
			}
			expandTo(s.store, it, treeDepth)
			printTree(w, it, 0)
		}
		return w.Flush()
	},
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", 2, "How many levels to expand")
	treeCmd.Flags().StringVar(&treeFormat, "format", "", "Force a registered format instead of glob matching")
	rootCmd.AddCommand(treeCmd)
}

// expandTo expands it and its descendants depth levels deep. Fetch
// failures stay captured on their node and show up in the ERROR column.
func expandTo(s *repo.Store, it repo.Item, depth int) {
	if depth <= 0 {
		return
	}
	if err := s.Expand(it.Path()); err != nil {
		return
	}
	for _, c := range it.Children() {
		expandTo(s, c, depth-1)
	}
}

func printTree(w *tabwriter.Writer, it repo.Item, indent int) {
	name := strings.Repeat("  ", indent) + it.Name()

	shape, elem := "", ""
	if it.IsSliceable() {
		shape = masked.FormatShape(it.Shape())
		elem = it.ElemType()
	}
	errCol := ""
	if err := it.LastErr(); err != nil {
		errCol = err.Error()
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		name, it.Kind(), repo.Dimensionality(it), shape, elem, errCol)

	for _, c := range it.Children() {
		printTree(w, c, indent+1)
	}
}
