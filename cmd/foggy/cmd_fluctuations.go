package main

import (
	"strconv"

	"github.com/dd0wney/cluso-foggy/pkg/results"
	"github.com/dd0wney/cluso-foggy/pkg/stats"
	"github.com/spf13/cobra"
)

func newFluctuationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fluctuations <activity.fgy>",
		Short: "Split node activity into internal and external fluctuations",
		Long: `Read an activity matrix written by march and print, per node, the mean
and standard deviation of its activity together with the standard deviations
of its internal and external parts.`,
		Example: `  foggy fluctuations results/3f2c.../activity.fgy --limit 20`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			m, err := results.ReadMatrixFile(args[0])
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(),
				[]string{"node", "mean", "std", "internal std", "external std"},
				fluctuationRows(m, limit))
		},
	}
	cmd.Flags().Int("limit", 0, "Print at most this many nodes (0 prints all)")
	return cmd
}

func fluctuationRows(m *stats.Matrix, limit int) [][]string {
	summary := stats.SummarizeRows(m)
	d := stats.Fluctuations(m)

	n := m.Rows
	if limit > 0 {
		n = min(n, limit)
	}
	rows := make([][]string, 0, n)
	for i := range n {
		rows = append(rows, []string{
			strconv.Itoa(i),
			formatFloat(summary.Mean[i]),
			formatFloat(summary.Std[i]),
			formatFloat(d.InternalStd[i]),
			formatFloat(d.ExternalStd[i]),
		})
	}
	return rows
}
