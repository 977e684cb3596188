// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/tome/internal/secrets"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage embedding provider API keys in the OS keyring",
		Long: `Store, list, and delete provider API keys in the operating system keyring.
A stored key is used whenever embedding.api_key is empty, or can be
referenced explicitly as keyring://tome/<provider>-api-key.`,
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <provider>",
		Short: "Store a provider API key",
		Long:  "Store a provider API key. The key is read from --value or, if omitted, from the first line of stdin.",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}

	cmd.Flags().String("value", "", "API key value (prefer stdin to keep it out of shell history)")

	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		Args:  cobra.NoArgs,
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete a provider API key",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	key := secrets.APIKeyName(args[0])

	value, _ := cmd.Flags().GetString("value")
	if value == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return tomeerr.New(tomeerr.CodeCLIInputInvalid, "no API key given on stdin or --value")
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return tomeerr.New(tomeerr.CodeCLIInputInvalid, "API key must not be empty")
	}

	if err := secretStoreFactory().Set(secrets.Service, key, value); err != nil {
		return err
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (reference: %s)\n", key, secrets.APIKeyURI(args[0]))
	return err
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.Service)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	key := secrets.APIKeyName(args[0])

	if err := secretStoreFactory().Delete(secrets.Service, key); err != nil {
		if tomeerr.HasCode(err, tomeerr.CodeSecretNotFound) {
			return tomeerr.Errorf(tomeerr.CodeSecretNotFound, "secret %q not found", key)
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", key)
	return nil
}
