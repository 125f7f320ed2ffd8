package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firnlab/firn/pkg/masked"
	"github.com/firnlab/firn/pkg/repo"
)

var infoFormat string

var infoCmd = &cobra.Command{
	Use:   "info <path> [nodepath]",
	Short: "Print an item's full metadata surface",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		handle, err := s.load(args[0], infoFormat)
		if err != nil {
			return err
		}
		nodePath := ""
		if len(args) == 2 {
			nodePath = args[1]
		}
		it, err := s.resolveUnder(handle, nodePath)
		if err != nil {
			return err
		}

		fmt.Printf("Path:      %s\n", it.Path())
		fmt.Printf("File:      %s\n", it.FileName())
		fmt.Printf("Kind:      %s\n", it.Kind())
		fmt.Printf("Color:     %s\n", repo.DecorationColor(it))
		if err := it.LastErr(); err != nil {
			fmt.Printf("Error:     %v\n", err)
		}
		if !it.IsSliceable() {
			return nil
		}

		fmt.Printf("Dim:       %s\n", repo.Dimensionality(it))
		fmt.Printf("Shape:     %s\n", masked.FormatShape(it.Shape()))
		fmt.Printf("Type:      %s\n", it.ElemType())
		if mv := it.MissingValue(); mv != nil {
			fmt.Printf("Missing:   %v\n", mv)
		}
		if u := it.Unit(); u != "" {
			fmt.Printf("Unit:      %s\n", u)
		}
		if c := it.Chunking(); c != "" {
			fmt.Printf("Chunking:  %s\n", c)
		}

		arr, err := s.store.Slice(it.Path(), allAxes(it))
		if err != nil {
			return fmt.Errorf("reading %s: %w", it.Path(), err)
		}
		printArraySummary(s, arr)
		return nil
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoFormat, "format", "", "Force a registered format instead of glob matching")
	rootCmd.AddCommand(infoCmd)
}

// printArraySummary prints shape, element counts, basic statistics and
// the configured percentile range of a masked array.
func printArraySummary(s *session, arr *masked.Array) {
	fmt.Printf("Result:    %s %s\n", masked.FormatShape(arr.Shape()), arr.Kind())
	fmt.Printf("Elements:  %d (%d masked)\n", arr.Len(), arr.MaskedCount())

	st := arr.Summary()
	fmt.Printf("Min/Max:   %g / %g\n", st.Min, st.Max)
	fmt.Printf("Mean:      %g (std %g)\n", st.Mean, st.Std)

	lo, hi := s.cfg.Stats.PercentileLow, s.cfg.Stats.PercentileHigh
	ps := arr.Percentile([]float64{lo, hi}, s.cfg.Stats.Subsample)
	fmt.Printf("P%g-P%g:  %g .. %g\n", lo, hi, ps[0], ps[1])
}
