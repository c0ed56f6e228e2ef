package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/amika-agent/internal/adapters/auth"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

func secretFlag(cmd *cobra.Command, secret *string) {
	cmd.Flags().StringVar(secret, "secret", os.Getenv("AMIKA_JWT_SECRET"), "signing secret (defaults to AMIKA_JWT_SECRET)")
}

func newVerifyLinkCommand() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "verify-link [token]",
		Short: "Decode a reminder deep-link token",
		Long:  "Verify the signature and expiry of a deep-link token and print its claims as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := auth.NewJWTIssuer(secret)
			if err != nil {
				return err
			}
			claims, err := issuer.Verify(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(claims)
		},
	}
	secretFlag(cmd, &secret)
	return cmd
}

func newIssueLinkCommand() *cobra.Command {
	var (
		secret string
		email  string
		prompt string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-link [googleId]",
		Short: "Mint a deep-link token for testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return errors.New("--prompt is required")
			}
			issuer, err := auth.NewJWTIssuer(secret)
			if err != nil {
				return err
			}
			token, err := issuer.Issue(domain.LinkClaims{UserID: domain.UserID(args[0]), Email: email, Prompt: prompt}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	secretFlag(cmd, &secret)
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt the chat opens with")
	cmd.Flags().DurationVar(&ttl, "ttl", 5*time.Hour, "token lifetime")
	return cmd
}
