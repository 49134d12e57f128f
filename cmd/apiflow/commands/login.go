package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/apiflow/internal/auth"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the target API",
		Long: `Obtain a bearer token from the API's token endpoint and store it in
the configuration for subsequent commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := viper.GetString("api")
			if baseURL == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("API base URL: ")
				baseURL, _ = reader.ReadString('\n')
				baseURL = strings.TrimSpace(baseURL)
			}

			if baseURL == "" {
				return ErrAPIRequired
			}

			if email == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Email: ")
				email, _ = reader.ReadString('\n')
				email = strings.TrimSpace(email)
			}

			if password == "" {
				fmt.Print("Password: ")

				bytePassword, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}

				password = string(bytePassword)

				fmt.Println()
			}

			if email == "" || password == "" {
				return ErrCredentialsRequired
			}

			manager := auth.NewPasswordTokenManager(&auth.PasswordConfig{
				TokenURL: tokenEndpoint(baseURL),
				Email:    email,
				Password: password,
			})

			token, err := manager.GetToken(context.Background())
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			viper.Set("api", baseURL)
			viper.Set("token", token)
			viper.Set("email", email)

			if err := saveConfig(); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Successfully logged in to %s\n", baseURL)

			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  "Remove the stored token and email from the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("token", "")
			viper.Set("email", "")

			if err := saveConfig(); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Println("Successfully logged out")

			return nil
		},
	}
}

func saveConfig() error {
	err := viper.WriteConfig()
	if err == nil {
		return nil
	}

	// First write: no config file exists yet.
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return viper.SafeWriteConfig()
	}

	return err
}
