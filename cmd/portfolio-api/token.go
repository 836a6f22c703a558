package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/portpushpesh/portfolio-api/internal/mailer"
)

const consentRedirectURL = "http://localhost:3000"

func refreshTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-token",
		Short: "Run the Google consent flow and print a Gmail refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Mail.GoogleClientID == "" || cfg.Mail.GoogleClientSecret == "" {
				return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			oc := mailer.GoogleConfig(cfg.Mail.GoogleClientID, cfg.Mail.GoogleClientSecret, consentRedirectURL)
			authURL := oc.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Open this URL in your browser and approve access:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, authURL)
			fmt.Fprintln(out)
			fmt.Fprint(out, "Paste the code parameter from the redirect URL: ")

			code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && code == "" {
				return fmt.Errorf("read authorization code: %w", err)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return errors.New("authorization code is empty")
			}

			tok, err := oc.Exchange(context.Background(), code)
			if err != nil {
				return fmt.Errorf("exchange authorization code: %w", err)
			}
			if tok.RefreshToken == "" {
				return errors.New("no refresh token returned; revoke the app's access and try again")
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Add this to your environment:")
			fmt.Fprintf(out, "GOOGLE_REFRESH_TOKEN=%s\n", tok.RefreshToken)
			return nil
		},
	}
}
