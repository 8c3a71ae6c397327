package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"localchat-backend/internal/auth"
	"localchat-backend/internal/config"
)

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("API_JWT_SECRET is not set; the API guard is disabled")
	}

	token, err := auth.NewAccessToken(tokenClient, cfg.JWTSecret, cfg.TokenExpiration)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
