// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the device templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TEMPLATE\tOBJECTS")
		for _, name := range config.TemplateNames() {
			objects, err := config.Template(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d\n", name, len(objects))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
