// Command shopper is a terminal storefront client. It keeps a guest cart and
// wishlist on disk, signs in with a one-time passcode and moves the guest
// state into the account on login.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/liminara/storefront/internal/storefront"
	"github.com/liminara/storefront/pkg/config"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

var (
	apiURL     string
	storageDir string
	timeout    time.Duration
	verbose    bool

	app *storefront.App
)

var rootCmd = &cobra.Command{
	Use:           "shopper",
	Short:         "Browse, fill a cart and sign in to the Liminara storefront",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.APIBaseURL = apiURL
		}
		if storageDir != "" {
			cfg.StorageDir = storageDir
		}
		if timeout > 0 {
			cfg.HTTPTimeout = timeout
		}

		level := logger.ParseLevel(cfg.LogLevel)
		if verbose {
			level = zerolog.DebugLevel
		}
		logg := logger.New(logger.Options{
			ServiceName: "shopper",
			Level:       level,
			Output:      cmd.ErrOrStderr(),
		})

		app, err = storefront.New(cmd.Context(), cfg, logg)
		return err
	},
}

// closeApp runs after every Execute, including ones whose command failed.
func closeApp() {
	if app != nil {
		app.Close()
		app = nil
	}
}

func init() {
	cobra.OnFinalize(closeApp)

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default from LIMINARA_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&storageDir, "storage", "", "Local storage directory (default from LIMINARA_STORAGE_DIR)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "HTTP request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(cartCmd)
	rootCmd.AddCommand(wishlistCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(buyNowCmd)
	rootCmd.AddCommand(checkoutCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// printError renders failures the way the storefront shows toasts: one line,
// never a stack.
func printError(w io.Writer, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	switch typed.Code() {
	case pkgerrors.CodeUnauthorized:
		fmt.Fprintf(w, "not signed in: %s\n", typed.Message())
	case pkgerrors.CodeRateLimit:
		fmt.Fprintf(w, "too many attempts, try again shortly: %s\n", typed.Message())
	case pkgerrors.CodeDependency:
		fmt.Fprintf(w, "storefront unavailable: %s\n", typed.Message())
	default:
		fmt.Fprintf(w, "%s\n", typed.Message())
	}
}
