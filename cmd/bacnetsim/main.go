// SPDX-License-Identifier: GPL-3.0-or-later

// Command bacnetsim runs and manages the multi-device building
// automation simulator.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
