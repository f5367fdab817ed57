package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	pkgerrors "github.com/liminara/storefront/pkg/errors"
)

var addQuantity int

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show or change the cart (guest cart until you sign in)",
}

var cartListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cart lines",
	Args:    cobra.NoArgs,
	RunE:    runCartList,
}

var cartAddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Add a product to the cart",
	Args:  cobra.ExactArgs(1),
	RunE:  runCartAdd,
}

var cartSetCmd = &cobra.Command{
	Use:   "set <product-id> <quantity>",
	Short: "Set the quantity of a cart line (0 removes it)",
	Args:  cobra.ExactArgs(2),
	RunE:  runCartSet,
}

var cartRemoveCmd = &cobra.Command{
	Use:     "remove <product-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a product from the cart",
	Args:    cobra.ExactArgs(1),
	RunE:    runCartRemove,
}

func init() {
	cartAddCmd.Flags().IntVarP(&addQuantity, "quantity", "q", 1, "Units to add")

	cartCmd.AddCommand(cartListCmd)
	cartCmd.AddCommand(cartAddCmd)
	cartCmd.AddCommand(cartSetCmd)
	cartCmd.AddCommand(cartRemoveCmd)
}

func runCartList(cmd *cobra.Command, args []string) error {
	view, err := app.ViewCart(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	origin := "guest cart"
	if view.Remote {
		origin = "account cart"
	}
	if len(view.Lines) == 0 {
		fmt.Fprintf(out, "%s is empty\n", origin)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE\tTOTAL")
	for _, line := range view.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", line.ProductID, line.Name, line.Quantity, line.Price.StringFixed(2), line.LineTotal.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d item(s), subtotal %s\n", origin, view.Count, view.Subtotal.StringFixed(2))
	return nil
}

func runCartAdd(cmd *cobra.Command, args []string) error {
	if err := app.AddToCart(cmd.Context(), args[0], addQuantity); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %d x %s\n", addQuantity, args[0])
	return nil
}

func runCartSet(cmd *cobra.Command, args []string) error {
	qty, err := strconv.Atoi(args[1])
	if err != nil || qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a non-negative number")
	}
	if err := app.SetCartQuantity(cmd.Context(), args[0], qty); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "set %s to %d\n", args[0], qty)
	return nil
}

func runCartRemove(cmd *cobra.Command, args []string) error {
	if err := app.RemoveFromCart(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
	return nil
}
