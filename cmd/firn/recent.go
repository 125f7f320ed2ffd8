package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently loaded files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		if s.hist == nil {
			fmt.Println("History is disabled.")
			return nil
		}
		entries, err := s.hist.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No recent files.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LOADED\tFORMAT\tFILE")
		for _, e := range entries {
			format := e.Format
			if format == "" {
				format = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.LoadedAt.Format("2006-01-02 15:04"), format, e.FileName)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(recentCmd)
}
