package commands

import (
	"fmt"
	"time"

	"github.com/fluxnet/fluxnet/src/node"
	"github.com/fluxnet/fluxnet/src/service"
	"github.com/spf13/cobra"
)

var (
	tokenTTL       time.Duration
	tokenPrivilege string
)

// NewTokenCmd returns the command that issues bearer tokens for the
// administrative API
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Issue an admin API token",
		PreRunE: func(cmd *cobra.Command, args []string) error { return bindFlagsLoadViper(cmd) },
		RunE:    issueToken,
	}

	cmd.Flags().String("datadir", _config.Node.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("admin-secret", _config.Node.AdminSecret, "HMAC secret of admin tokens")
	cmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Validity of the token, 0 for no expiry")
	cmd.Flags().StringVar(&tokenPrivilege, "privilege", node.AdminPrivilege, "Privilege granted by the token")

	return cmd
}

func issueToken(cmd *cobra.Command, args []string) error {
	auth := service.NewTokenAuthorizer(_config.Node.AdminSecret, _config.Node.Logger())

	token, err := auth.Issue(tokenPrivilege, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)

	return nil
}
