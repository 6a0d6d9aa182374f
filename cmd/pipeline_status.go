package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var pipelineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tCREATED\tPUBLISHED\tCURRENT")
		for _, run := range runs {
			current := ""
			if run.Current {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
				run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.Published, current)
		}
		return w.Flush()
	},
}

var pruneKeep int

var pipelinePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs, keeping the current snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		deleted, err := st.PruneRuns(ctx, pruneKeep)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d runs\n", deleted)
		return nil
	},
}

func init() {
	pipelinePruneCmd.Flags().IntVar(&pruneKeep, "keep", 3, "non-current runs to keep")
	pipelineCmd.AddCommand(pipelineStatusCmd)
	pipelineCmd.AddCommand(pipelinePruneCmd)
}
