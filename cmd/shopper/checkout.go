package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/liminara/storefront/pkg/enums"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
)

var checkoutClear bool

var buyNowCmd = &cobra.Command{
	Use:   "buy-now <product-id> [quantity]",
	Short: "Check out a single product without touching the cart",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a number")
			}
			qty = n
		}
		if err := app.BuyNow(cmd.Context(), args[0], qty); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checking out %d x %s\n", qty, args[0])
		return nil
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Start checking out the cart, or show the checkout in progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if checkoutClear {
			if err := app.Checkout.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "checkout cleared")
			return nil
		}

		pending, err := app.Checkout.Pending(ctx)
		if err != nil {
			return err
		}
		if pending != nil && pending.Type == enums.CheckoutTypeBuyNow {
			fmt.Fprintf(out, "buy-now in progress: %d x %s (%s)\n", pending.Item.Quantity, pending.Item.Product.Name, pending.Item.ProductID)
			return nil
		}

		view, err := app.ViewCart(ctx)
		if err != nil {
			return err
		}
		if len(view.Lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		if err := app.Checkout.StartCartCheckout(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "checking out %d item(s), subtotal %s\n", view.Count, view.Subtotal.StringFixed(2))
		return nil
	},
}

func init() {
	checkoutCmd.Flags().BoolVar(&checkoutClear, "clear", false, "Forget the checkout in progress")
}
