// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/tome/internal/collection"
	"github.com/sigil-dev/tome/internal/reconcile"
	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
	"github.com/sigil-dev/tome/pkg/types"
)

// summaryLength is how much content search results show.
const summaryLength = 256

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Index and search a single store",
		Long:  "Build, sync, search, and inspect the contents of one named store.",
	}

	cmd.AddCommand(
		newStoreBuildCmd(),
		newStoreSyncCmd(),
		newStoreSearchCmd(),
		newStoreShowCmd(),
	)

	return cmd
}

// withCollection opens the named store with an embedding client and calls fn.
func withCollection(cmd *cobra.Command, name string, fn func(a *app, c *collection.Collection) error) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	c, err := a.manager.Open(cmd.Context(), name)
	if err != nil {
		return err
	}
	return fn(a, c)
}

func newStoreBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <name>",
		Short: "Rebuild a store from scratch",
		Long:  "Drop every entry in the store and index every eligible file in its directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, args[0], reconcile.ModeBuild)
		},
	}
}

func newStoreSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <name>",
		Short: "Bring a store in line with its directory",
		Long: `Apply the minimal set of changes that makes the store match its directory:
entries for removed or private files are deleted, new files are added, and
changed files are re-embedded. Unchanged files cost nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if !dryRun {
				return runReconcile(cmd, args[0], reconcile.ModeSync)
			}
			return withCollection(cmd, args[0], func(a *app, c *collection.Collection) error {
				eng, err := a.engine(c)
				if err != nil {
					return err
				}
				plan, err := eng.Plan(cmd.Context())
				if err != nil {
					return err
				}
				printPlan(cmd.OutOrStdout(), c.Name(), plan)
				return nil
			})
		},
	}

	cmd.Flags().Bool("dry-run", false, "show the planned changes without applying them")

	return cmd
}

func runReconcile(cmd *cobra.Command, name string, mode reconcile.Mode) error {
	return withCollection(cmd, name, func(a *app, c *collection.Collection) error {
		out := cmd.OutOrStdout()
		title := fmt.Sprintf("%s %s (%s)", mode, c.Name(), c.Location())

		report, err := runWithProgress(cmd.Context(), out, title,
			func(ctx context.Context, obs reconcile.Observer) (*reconcile.Report, error) {
				eng, err := a.engine(c, reconcile.WithObserver(obs))
				if err != nil {
					return nil, err
				}
				if mode == reconcile.ModeBuild {
					return eng.Build(ctx)
				}
				return eng.Sync(ctx)
			})
		if report != nil {
			printReport(out, c.Name(), report)
		}
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return tomeerr.Errorf(tomeerr.CodeSyncRunFailure, "%s %s: %d file(s) failed", mode, c.Name(), report.Failed)
		}
		return nil
	})
}

func newStoreSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <name> <query>",
		Short: "Find the entries most similar to a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			column, _ := cmd.Flags().GetString("column")
			if !cmd.Flags().Changed("column") {
				column = viper.GetString("search.column")
			}
			field, ok := types.ParseSearchField(column)
			if !ok {
				return tomeerr.Errorf(tomeerr.CodeCLIInputInvalid, "invalid column %q: expected title or content", column)
			}

			limit, _ := cmd.Flags().GetInt("limit")
			if !cmd.Flags().Changed("limit") {
				limit = viper.GetInt("search.limit")
			}
			if limit <= 0 {
				return tomeerr.Errorf(tomeerr.CodeCLIInputInvalid, "limit must be positive, got %d", limit)
			}

			return withCollection(cmd, args[0], func(_ *app, c *collection.Collection) error {
				results, err := c.Store.Search(cmd.Context(), args[1], field, limit)
				if err != nil {
					return err
				}
				printResults(cmd, results)
				return nil
			})
		},
	}

	cmd.Flags().String("column", string(types.DefaultSearchField), "embedding to compare against: title or content")
	cmd.Flags().Int("limit", 10, "maximum number of results")

	return cmd
}

func printResults(cmd *cobra.Command, results []store.SearchResult) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "No results.")
		return
	}
	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		_, _ = fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("(%d) %s", r.ID, r.Title)))
		_, _ = fmt.Fprintln(out, store.ContentSummary(r.Content, summaryLength))
		_, _ = fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("distance: %.4f", r.Distance)))
	}
}

func newStoreShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name> <id>",
		Short: "Print one stored entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return tomeerr.Errorf(tomeerr.CodeCLIInputInvalid, "invalid entry id %q", args[1])
			}

			return withCollection(cmd, args[0], func(_ *app, c *collection.Collection) error {
				e, err := c.Store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("(%d) %s", e.ID, e.Title)))
				_, _ = fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s [%s]", e.Path, e.FileType)))
				_, err = fmt.Fprintln(out, e.Content)
				return err
			})
		},
	}
}
