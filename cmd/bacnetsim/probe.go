// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/engine"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/spf13/cobra"
)

var (
	probeAddr    string
	probeTimeout time.Duration
	probeWhoIs   bool
)

var probeCmd = &cobra.Command{
	Use:   "probe --addr host:port [<type> <instance>]",
	Short: "Read an object of a running device over the protocol",
	Args: func(cmd *cobra.Command, args []string) error {
		if probeWhoIs {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := netip.ParseAddrPort(probeAddr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", probeAddr, err)
		}
		client := &engine.Client{Logger: logger, Timeout: probeTimeout}
		w := cmd.OutOrStdout()

		if probeWhoIs {
			resp, err := client.WhoIs(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "device %d %q at %s\n", resp.DeviceID, resp.DeviceName, addr)
			return nil
		}

		key, err := objtable.ParseKey(args[0], args[1])
		if err != nil {
			return err
		}
		value, err := client.ReadProperty(cmd.Context(), addr, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s = %v\n", key, value)
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeAddr, "addr", "", "device address as host:port")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", engine.DefaultClientTimeout, "request timeout")
	probeCmd.Flags().BoolVar(&probeWhoIs, "who-is", false, "send a discovery request instead of reading an object")
	probeCmd.MarkFlagRequired("addr")
	rootCmd.AddCommand(probeCmd)
}
