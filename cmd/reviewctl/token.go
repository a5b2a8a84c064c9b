package main

import (
	"fmt"

	"github.com/spf13/cobra"

	jwttoken "expatdesk/internal/jwt_token"
	"expatdesk/internal/platform/config"
)

func operatorTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator-token",
		Short: "Mint a back-office bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			svc := jwttoken.NewJWTService(cfg.Operator.SigningKey, cfg.Operator.Issuer, cfg.Operator.Audience,
				jwttoken.WithDefaultTTL(cfg.Operator.TokenTTL))
			token, err := svc.GenerateOperatorToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringP("subject", "s", "", "operator id")
	cmd.Flags().Duration("ttl", 0, "token lifetime (defaults to OPERATOR_JWT_TTL)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
