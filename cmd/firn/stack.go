package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firnlab/firn/pkg/repo"
)

var (
	stackFormat    string
	stackKind      string
	stackWindow    int
	stackName      string
	stackSelection string
)

var stackCmd = &cobra.Command{
	Use:   "stack <path> <nodepath>",
	Short: "Stack a radargram and mount the product in the tree",
	Long: `Stack combines every --window consecutive traces of a 2D node into
one output trace, coherently (averaging amplitudes) or incoherently
(averaging power). The computation runs on a worker goroutine and the
finished product is delivered back into the tree as a derived item.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		var mode repo.StackMode
		switch stackKind {
		case "coherent":
			mode = repo.StackCoherent
		case "incoherent":
			mode = repo.StackIncoherent
		default:
			return fmt.Errorf("unknown stack kind %q (want coherent or incoherent)", stackKind)
		}

		handle, err := s.load(args[0], stackFormat)
		if err != nil {
			return err
		}
		it, err := s.resolveUnder(handle, args[1])
		if err != nil {
			return err
		}
		sel := stackSelection
		if sel == "" {
			sel = allAxes(it)
		}
		input, err := s.store.Slice(it.Path(), sel)
		if err != nil {
			return err
		}

		name := stackName
		if name == "" {
			name = fmt.Sprintf("%s_stack%d", it.Name(), stackWindow)
		}

		// The worker runs out of band; the placeholder goes into the tree
		// first and the result is mounted when the channel delivers.
		placeholder := repo.NewDerivedItem(name)
		if err := s.store.InsertChild(s.store.Root(), placeholder, -1); err != nil {
			return err
		}

		result := <-repo.StartStack(cmd.Context(), repo.StackRequest{
			Name:   name,
			Input:  input,
			Window: stackWindow,
			Mode:   mode,
		})
		if result.Err != nil {
			placeholder.Fail(result.Err)
			return result.Err
		}
		placeholder.SetResult(result.Arr)

		fmt.Printf("Stacked %s (%s, window %d) in %v\n", it.Path(), mode, stackWindow, result.Elapsed)
		fmt.Printf("Mounted:   %s\n", placeholder.Path())
		printArraySummary(s, result.Arr)
		return nil
	},
}

func init() {
	stackCmd.Flags().StringVar(&stackFormat, "format", "", "Force a registered format instead of glob matching")
	stackCmd.Flags().StringVar(&stackKind, "kind", "coherent", "Stacking kind: coherent or incoherent")
	stackCmd.Flags().IntVar(&stackWindow, "window", 10, "Traces per output trace")
	stackCmd.Flags().StringVar(&stackName, "name", "", "Name for the derived product")
	stackCmd.Flags().StringVar(&stackSelection, "selection", "", "Selection applied to the input before stacking")
	rootCmd.AddCommand(stackCmd)
}
