package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	envFile     string
	tokenClient string

	rootCmd = &cobra.Command{
		Use:           "localchat",
		Short:         "Streaming chat gateway for a locally served language model",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API guard (requires API_JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	tokenCmd.Flags().StringVar(&tokenClient, "client", "frontend", "client id recorded in the token")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}
