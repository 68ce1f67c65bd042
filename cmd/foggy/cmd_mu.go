package main

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-foggy/pkg/assess"
	"github.com/spf13/cobra"
)

func newMuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mu",
		Short: "Convert between the scaling exponent alpha and the degree exponent mu",
		Long: `With --alpha, print the exponent mu that degree-weighted visits need for
node fluctuations to scale with exponent alpha. With --mu, print the alpha
that mu produces.`,
		Example: `  foggy mu --alpha 0.75
  foggy mu --mu 1 --nu 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nu, _ := cmd.Flags().GetFloat64("nu")
			alphaSet := cmd.Flags().Changed("alpha")
			muSet := cmd.Flags().Changed("mu")
			if alphaSet == muSet {
				return errors.New("exactly one of --alpha and --mu is required")
			}

			if muSet {
				mu, _ := cmd.Flags().GetFloat64("mu")
				fmt.Fprintf(cmd.OutOrStdout(), "alpha = %s\n", formatFloat(assess.Alpha(mu, nu)))
				return nil
			}
			alpha, _ := cmd.Flags().GetFloat64("alpha")
			mu, err := assess.ComputeMu(alpha, nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mu = %s\n", formatFloat(mu))
			return nil
		},
	}
	cmd.Flags().Float64("alpha", 0, "Fluctuation scaling exponent")
	cmd.Flags().Float64("mu", 0, "Degree exponent")
	cmd.Flags().Float64("nu", assess.DefaultNu, "Walker exponent")
	return cmd
}
