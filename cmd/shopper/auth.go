package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/liminara/storefront/internal/storefront/migration"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a one-time passcode",
}

var loginRequestCmd = &cobra.Command{
	Use:   "request <email-or-phone>",
	Short: "Send a passcode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issued, err := app.Session.RequestOTP(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "passcode sent by %s, valid for %ds\n", issued.Channel, issued.ExpiresIn)
		return nil
	},
}

var loginVerifyCmd = &cobra.Command{
	Use:   "verify <email-or-phone> <code>",
	Short: "Sign in with the passcode and move the guest cart into the account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.Session.VerifyOTP(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		greeting := "welcome back"
		if res.Created {
			greeting = "welcome"
		}
		fmt.Fprintf(out, "%s, %s\n", greeting, res.Session.User.Label())
		printMigration(out, res.Migration)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out (the guest cart on this device is kept)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		current := app.Session.Current()
		out := cmd.OutOrStdout()
		if current.User == nil {
			fmt.Fprintln(out, "anonymous")
			return nil
		}
		fmt.Fprintf(out, "%s (%s, %s)\n", current.User.Label(), current.User.ID, current.User.Role)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry moving the guest cart and wishlist into the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.Sync(cmd.Context())
		if err != nil {
			return err
		}
		printMigration(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	loginCmd.AddCommand(loginRequestCmd)
	loginCmd.AddCommand(loginVerifyCmd)
}

func printMigration(w io.Writer, res migration.Result) {
	report := func(label string, o migration.Outcome) {
		switch {
		case o.Attempted == 0 && !o.Failed():
		case o.Cleared:
			fmt.Fprintf(w, "moved %d %s item(s) into your account\n", o.Succeeded, label)
		default:
			fmt.Fprintf(w, "moved %d of %d %s item(s); the rest stay on this device, run `shopper sync` to retry\n", o.Succeeded, o.Attempted, label)
		}
	}
	report("cart", res.Cart)
	report("wishlist", res.Wishlist)
}
