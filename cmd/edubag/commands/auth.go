package commands

import (
	"fmt"
	"log/slog"

	"edubag/lib/clients"
	"edubag/lib/scrapers/albert"
	"edubag/lib/scrapers/brightspace"
	"edubag/lib/scrapers/gradescope"

	"github.com/spf13/cobra"
)

var authHeadless *bool
var authUsername *string
var authPassword *string

func init() {
	authHeadless = authCmd.Flags().Bool("headless", false, "Fail instead of prompting when the login needs input.")
	authUsername = authCmd.Flags().String("username", "", "The account username or email.")
	authPassword = authCmd.Flags().String("password", "", "The account password. Prompted when omitted.")
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth <albert|brightspace|gradescope>",
	Short: "Logs into a platform and saves the session for later exports.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		var client clients.Client
		switch args[0] {
		case albert.Platform:
			client = albertClient(cfg)
		case brightspace.Platform:
			client = brightspaceClient(cfg)
		case gradescope.Platform:
			client = gradescopeClient(cfg)
		default:
			fatal("unknown platform", fmt.Errorf("%q is not albert, brightspace or gradescope", args[0]))
		}

		opts := clients.DefaultAuthOptions()
		opts.Headless = *authHeadless

		err := client.Authenticate(cmd.Context(), clients.Credentials{
			Username: *authUsername,
			Password: *authPassword,
		}, opts)
		if err != nil {
			fatal("login failed", err)
		}

		slog.Info("session saved", "platform", client.Platform(), "path", client.AuthStatePath())
	},
}
