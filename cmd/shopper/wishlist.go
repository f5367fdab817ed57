package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var wishlistCmd = &cobra.Command{
	Use:   "wishlist",
	Short: "Show or change the wishlist",
}

var wishlistListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List liked products",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, isRemote, err := app.ViewWishlist(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(lines) == 0 {
			fmt.Fprintln(out, "wishlist is empty")
			return nil
		}
		for _, line := range lines {
			fmt.Fprintf(out, "%s  %s  %s\n", line.ProductID, line.Name, line.Price.StringFixed(2))
		}
		if !isRemote {
			fmt.Fprintln(out, "(saved on this device; sign in to keep it)")
		}
		return nil
	},
}

var wishlistAddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Like a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.AddToWishlist(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "liked %s\n", args[0])
		return nil
	},
}

var wishlistRemoveCmd = &cobra.Command{
	Use:     "remove <product-id>",
	Aliases: []string{"rm"},
	Short:   "Unlike a product",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.RemoveFromWishlist(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unliked %s\n", args[0])
		return nil
	},
}

func init() {
	wishlistCmd.AddCommand(wishlistListCmd)
	wishlistCmd.AddCommand(wishlistAddCmd)
	wishlistCmd.AddCommand(wishlistRemoveCmd)
}
