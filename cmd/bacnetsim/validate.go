// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateOutput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and summarize the devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		switch validateOutput {
		case "yaml":
			// the expanded configuration, with the templates applied
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		case "table":
		default:
			return fmt.Errorf("invalid --output %q", validateOutput)
		}

		g := &cfg.Global
		fmt.Fprintf(w, "configuration %s is valid\n", describePath(path))
		fmt.Fprintf(w, "interface %s, subnet /%d, protocol port %d, api port %d, network profile %s\n",
			g.Interface, g.SubnetMask, g.BACnetPort, g.APIPort, g.NetworkProfile)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DEVICE\tNAME\tADDRESS\tOBJECTS\tPROFILE")
		for idx := range cfg.Devices {
			dev := &cfg.Devices[idx]
			addr := "auto"
			if dev.IP != "" {
				addr = dev.IP
			}
			profile, _ := dev.Profile(g)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", dev.DeviceID, dev.Name, addr, len(dev.Objects), profile)
		}
		return tw.Flush()
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "table", "output format: table or yaml")
	rootCmd.AddCommand(validateCmd)
}
