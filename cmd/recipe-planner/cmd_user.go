package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipe-planner/internal/auth"
)

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var (
		name       string
		telegramID int64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new user and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			var tgID *int64
			if telegramID != 0 {
				tgID = &telegramID
			}
			u, err := a.Users.Create(cmd.Context(), name, tgID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().Int64Var(&telegramID, "telegram-id", 0, "link a Telegram account")

	cmd.AddCommand(create)
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	var (
		userID string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an API bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireJWT(); err != nil {
				return err
			}
			if userID == "" {
				return errors.New("--user is required")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			u, err := a.Users.Get(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %s not found", userID)
			}
			tokens, err := auth.NewTokens(c.cfg.JWTSecret)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(u.ID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user id")
	issue.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}
