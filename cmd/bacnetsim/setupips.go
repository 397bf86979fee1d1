// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/addralloc"
	"github.com/spf13/cobra"
)

var setupLoopback bool

var setupIPsCmd = &cobra.Command{
	Use:   "setup-ips",
	Short: "Assign the device addresses without starting the devices",
	Long: `Setup-ips plans the device addresses and adds them to the interface.
Addresses already present are kept. It fails if any address cannot be
assigned.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		iface, err := newInterface(cfg, setupLoopback)
		if err != nil {
			return err
		}
		alloc, err := addralloc.NewAllocator(ctx, iface, cfg.Global.SubnetMask)
		if err != nil {
			return err
		}
		alloc.AdoptExisting = true
		alloc.Logger = logger

		explicit := make([]netip.Addr, len(cfg.Devices))
		for idx := range cfg.Devices {
			explicit[idx] = cfg.Devices[idx].Addr()
		}
		plan, planErr := alloc.Plan(explicit)
		if plan == nil {
			return planErr
		}

		errv := []error{planErr}
		for idx, addr := range plan {
			id := cfg.Devices[idx].DeviceID
			if !addr.IsValid() {
				continue
			}
			if err := alloc.Apply(ctx, addr); err != nil {
				errv = append(errv, fmt.Errorf("device %d: %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "device %d: %s/%d\n", id, addr, alloc.Subnet().Bits())
		}
		return errors.Join(errv...)
	},
}

func init() {
	setupIPsCmd.Flags().BoolVar(&setupLoopback, "loopback", false,
		"use the loopback addresses instead of managing the interface")
	rootCmd.AddCommand(setupIPsCmd)
}
