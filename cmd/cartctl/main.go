package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mertkaradayi/bookcart/internal/client"
	"github.com/mertkaradayi/bookcart/internal/domain"
	"github.com/mertkaradayi/bookcart/internal/state"
	"github.com/mertkaradayi/bookcart/pkg/logger"
)

// cartctl drives the cart API from the command line. Every invocation
// loads the server cart into a fresh session, applies one operation, and
// prints the resulting cart.

var (
	baseURL string
	userID  string
)

func main() {
	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and mutate a bookstore cart",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&baseURL, "base-url", envOr("CART_API_URL", "http://localhost:8003"), "cart service base URL")
	root.PersistentFlags().StringVar(&userID, "user", envOr("CART_USER_ID", ""), "user ID sent as X-User-ID")

	root.AddCommand(
		showCmd(),
		addCmd(),
		updateCmd(),
		removeCmd(),
		clearCmd(),
		checkoutCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cartctl: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newSession(ctx context.Context) (*state.CartState, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID required (--user or CART_USER_ID)")
	}

	log := logger.New("cartctl", "warn")
	backend := client.NewDefaultHTTPBackend(baseURL, userID, log)
	session := state.New(backend, log)

	if !session.Load(ctx) {
		return nil, fmt.Errorf("load cart: %s", session.ConsumeMessage())
	}
	return session, nil
}

func printCart(session *state.CartState) {
	lines := session.Lines()
	if len(lines) == 0 {
		fmt.Println("cart is empty")
		return
	}

	for _, line := range lines {
		fmt.Printf("%-24s %-40s x%-3d %8s", line.Book.ID, line.Book.Title, line.Quantity, line.Subtotal().StringFixed(2))
		if line.Book.DiscountPercent > 0 {
			fmt.Printf("  (-%d%% -> %s)", line.Book.DiscountPercent, line.DiscountedSubtotal().Round(2).StringFixed(2))
		}
		fmt.Println()
	}

	fmt.Printf("subtotal: %s  total after discounts: %s\n",
		domain.SumSubtotals(lines).StringFixed(2),
		domain.SumDiscountedSubtotals(lines).StringFixed(2),
	)
}

func printOutcome(session *state.CartState, applied bool) {
	if msg := session.ConsumeMessage(); msg != "" {
		fmt.Printf("status: %s\n", msg)
	}
	if applied {
		printCart(session)
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			printCart(session)
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <book-id> <quantity>",
		Short: "Add a book to the cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %q", args[1])
			}
			session, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			applied := session.AddItem(cmd.Context(), args[0], qty)
			printOutcome(session, applied)
			return nil
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <book-id> <quantity>",
		Short: "Set a cart line to an exact quantity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %q", args[1])
			}
			session, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			applied := session.UpdateItemQuantity(cmd.Context(), args[0], qty)
			printOutcome(session, applied)
			return nil
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			applied := session.RemoveItem(cmd.Context(), args[0])
			printOutcome(session, applied)
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every line from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			applied := session.Clear(cmd.Context())
			printOutcome(session, applied)
			return nil
		},
	}
}

func checkoutCmd() *cobra.Command {
	var selectIDs string

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Print the checkout payload for selected lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd.Context())
			if err != nil {
				return err
			}

			if selectIDs == "" {
				session.SelectAll()
			} else {
				for _, id := range strings.Split(selectIDs, ",") {
					session.ToggleSelect(strings.TrimSpace(id))
				}
			}

			payload := session.CheckoutPayload()
			if len(payload) == 0 {
				return fmt.Errorf("nothing selected")
			}

			out, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			fmt.Printf("total after discounts: %s\n", session.SelectedDiscountedTotal().StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&selectIDs, "select", "", "comma-separated book IDs to select (default: all)")
	return cmd
}
