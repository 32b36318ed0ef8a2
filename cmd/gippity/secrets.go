package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"autogippity/pkg/config"
	"autogippity/pkg/console"
)

func secretsCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted project secrets file",
		Long: "Secrets such as API keys are kept in " + config.ProjectConfigDir + "/secrets.json.enc,\n" +
			"encrypted with a password. The password is read from $" + config.EnvPassword + "\n" +
			"or asked for interactively.",
	}
	cmd.AddCommand(
		secretsSetCmd(global),
		secretsListCmd(global),
		secretsDeleteCmd(global),
	)
	return cmd
}

func secretsSetCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store a secret, asking for the value when it is not given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompter := console.NewPrompter(cmd.InOrStdin(), console.NewPrinter(cmd.OutOrStdout()))
			password, err := unlockSecrets(global.projectDir, prompter)
			if err != nil {
				return err
			}

			name := args[0]
			var value string
			if len(args) == 2 {
				value = args[1]
			} else if value, err = prompter.AskSecret(fmt.Sprintf("Value for %s: ", name)); err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("secret %s needs a value", name)
			}

			if err := config.SetSecret(name, value); err != nil {
				return err
			}
			if err := config.SaveSecretsToFile(global.projectDir, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved secret %s\n", name)
			return nil
		},
	}
}

func secretsListCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the names of stored secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompter := console.NewPrompter(cmd.InOrStdin(), console.NewPrinter(cmd.OutOrStdout()))
			if _, err := unlockSecrets(global.projectDir, prompter); err != nil {
				return err
			}

			names := config.GetDecryptedSecretNames()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored")
				return nil
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func secretsDeleteCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompter := console.NewPrompter(cmd.InOrStdin(), console.NewPrinter(cmd.OutOrStdout()))
			password, err := unlockSecrets(global.projectDir, prompter)
			if err != nil {
				return err
			}

			name := args[0]
			if !slices.Contains(config.GetDecryptedSecretNames(), name) {
				return fmt.Errorf("secret %s not found", name)
			}
			if err := config.DeleteSecret(name); err != nil {
				return err
			}
			if err := config.SaveSecretsToFile(global.projectDir, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret %s\n", name)
			return nil
		},
	}
}

// unlockSecrets loads the project's secrets file into memory and returns the
// password it was opened with. A missing file leaves an empty set.
func unlockSecrets(projectDir string, prompter *console.Prompter) (string, error) {
	password := os.Getenv(config.EnvPassword)
	if password == "" {
		var err error
		if password, err = prompter.AskSecret("Secrets password: "); err != nil {
			return "", err
		}
	}
	if password == "" {
		return "", errors.New("a secrets password is required")
	}

	config.SetDecryptedSecrets(nil)
	if err := config.UnlockSecrets(projectDir, password); err != nil {
		return "", fmt.Errorf("failed to unlock secrets: %w", err)
	}
	return password, nil
}
