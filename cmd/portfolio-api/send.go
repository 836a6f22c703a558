package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portpushpesh/portfolio-api/internal/config"
	"github.com/portpushpesh/portfolio-api/internal/mailer"
)

func sendCmd() *cobra.Command {
	var (
		email    string
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the resume to an address without going through HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			s := cfg.Mail.Strategy
			if strategy != "" {
				if s, err = config.ParseStrategy(strategy); err != nil {
					return err
				}
			}

			ctx := context.Background()
			d, err := mailer.New(ctx, cfg, mailer.WithLogger(logger))
			if err != nil {
				return err
			}

			res, err := d.Dispatch(ctx, email, s)
			if err != nil {
				return fmt.Errorf("send failed (%s): %w", mailer.KindOf(err), err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.UserMessage)
			fmt.Fprintf(cmd.OutOrStdout(), "Message ID: %s\n", res.MessageID)
			if res.DownloadURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Download URL: %s\n", res.DownloadURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "recipient address")
	cmd.Flags().StringVar(&strategy, "strategy", "", "delivery strategy: auto, smtp, oauth2, attachment or link")
	cmd.MarkFlagRequired("email")
	return cmd
}
