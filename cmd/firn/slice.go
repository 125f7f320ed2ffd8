package main

import (
	"github.com/spf13/cobra"
)

var sliceFormat string

var sliceCmd = &cobra.Command{
	Use:   "slice <path> <nodepath> <selection>",
	Short: "Slice a node's data and summarize the result",
	Long: `Slice applies a selection expression to a sliceable node and prints
the resulting masked array's shape, masked count and statistics.

Selections are comma-separated per-axis terms: an index, a lo:hi range
with optional :step, or ":" for the whole axis, e.g. "0:100:2, :".`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		handle, err := s.load(args[0], sliceFormat)
		if err != nil {
			return err
		}
		it, err := s.resolveUnder(handle, args[1])
		if err != nil {
			return err
		}
		arr, err := s.store.Slice(it.Path(), args[2])
		if err != nil {
			return err
		}
		printArraySummary(s, arr)
		return nil
	},
}

func init() {
	sliceCmd.Flags().StringVar(&sliceFormat, "format", "", "Force a registered format instead of glob matching")
	rootCmd.AddCommand(sliceCmd)
}
