// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// resetConfirmation must be typed to confirm `stores reset`.
const resetConfirmation = "RESET"

func newStoresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Manage the store catalog",
		Long:  "Add, list, inspect, rename, and remove the named stores tome knows about.",
	}

	cmd.AddCommand(
		newStoresAddCmd(),
		newStoresListCmd(),
		newStoresGetCmd(),
		newStoresRemoveCmd(),
		newStoresRenameCmd(),
		newStoresResetCmd(),
	)

	return cmd
}

func newStoresAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a directory as a named store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rec, err := a.manager.Add(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added store %q for %s\nRun 'tome store build %s' to index it.\n",
				rec.Name, rec.Location, rec.Name)
			return err
		},
	}
}

func newStoresListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			recs, err := a.manager.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				_, err = fmt.Fprintln(out, "No stores registered.")
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tLOCATION")
			for _, r := range recs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.Name, r.Location)
			}
			return tw.Flush()
		},
	}
}

func newStoresGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one store's catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rec, err := a.manager.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%-10s %s\n", "Name:", rec.Name)
			_, _ = fmt.Fprintf(out, "%-10s %s\n", "Location:", rec.Location)
			_, _ = fmt.Fprintf(out, "%-10s %s\n", "Data:", a.manager.StoreDir(rec.Name))
			_, err = fmt.Fprintf(out, "%-10s %s\n", "Created:", rec.CreatedAt.Local().Format(time.DateTime))
			return err
		},
	}
}

func newStoresRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a store from the catalog",
		Long: `Remove a store from the catalog. Its database is kept unless --purge is
given. The indexed directory itself is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			purge, _ := cmd.Flags().GetBool("purge")

			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.manager.Remove(cmd.Context(), args[0], purge); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed store %q\n", args[0])
			return err
		},
	}

	cmd.Flags().Bool("purge", false, "also delete the store's database")

	return cmd
}

func newStoresRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.manager.Rename(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Renamed store %q to %q\n", args[0], args[1])
			return err
		},
	}
}

func newStoresResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every store from the catalog",
		Long: `Remove every store from the catalog. Asks for confirmation unless --yes
is given. Store databases are kept unless --purge is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			purge, _ := cmd.Flags().GetBool("purge")

			if !yes {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "This removes every store. Type %s to confirm: ", resetConfirmation)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return tomeerr.New(tomeerr.CodeCLIInputInvalid, "reset not confirmed")
				}
				if strings.TrimSpace(line) != resetConfirmation {
					return tomeerr.New(tomeerr.CodeCLIInputInvalid, "reset not confirmed")
				}
			}

			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.manager.Reset(cmd.Context(), purge); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "All stores removed.")
			return err
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().Bool("purge", false, "also delete every store database")

	return cmd
}
