// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command jackup serves jack applications.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/z5labs/jack"
	"github.com/z5labs/jack/cmd/jackup/apps"
	"github.com/z5labs/jack/pkg/registry"

	"github.com/spf13/cobra"
)

func main() {
	var r registry.Registry[jack.App]
	err := apps.Register(&r)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = newRootCmd(&r).ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(apps *registry.Registry[jack.App]) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "jackup",
		Short:        "Serve jack applications",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(apps),
		newAppsCmd(apps),
	)
	return cmd
}

func newAppsCmd(apps *registry.Registry[jack.App]) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List the apps which can be served",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range apps.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
