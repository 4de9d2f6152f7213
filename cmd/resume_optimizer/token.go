package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TedTes/genres-sub000/internal/server"
)

var tokenRequester string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a requester",
	Long:  `Sign a JWT whose subject is the requester ID, using server.jwt_secret (or JWT_SECRET).`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRequester, "requester", "", "Requester ID to embed in the token")
	_ = tokenCmd.MarkFlagRequired("requester")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jwtCfg, err := cfg.JWT()
	if err != nil {
		return err
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenRequester)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
