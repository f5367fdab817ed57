package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/liminara/storefront/pkg/errors"
)

const candleID = "2f0c8c57-8d56-4f0c-9a55-3cc1f0e0b1aa"

func runShopper(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGuestCartCommands(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"id":"`+r.PathValue("id")+`","name":"Candle","price":"8.25"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Setenv("LIMINARA_API_BASE_URL", srv.URL)
	storage := t.TempDir()

	out, err := runShopper(t, "--storage", storage, "cart", "add", candleID, "-q", "2")
	if err != nil {
		t.Fatalf("cart add: %v", err)
	}
	if !strings.Contains(out, "added 2 x "+candleID) {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = runShopper(t, "--storage", storage, "cart", "list")
	if err != nil {
		t.Fatalf("cart list: %v", err)
	}
	if !strings.Contains(out, "Candle") || !strings.Contains(out, "subtotal 16.50") {
		t.Fatalf("unexpected listing %q", out)
	}

	out, err = runShopper(t, "--storage", storage, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if strings.TrimSpace(out) != "anonymous" {
		t.Fatalf("unexpected whoami %q", out)
	}

	if _, err := runShopper(t, "--storage", storage, "sync"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized sync, got %v", err)
	}
	if app != nil {
		t.Fatal("expected the app to be closed after a failing command")
	}

	out, err = runShopper(t, "--storage", storage, "checkout")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !strings.Contains(out, "checking out 2 item(s)") {
		t.Fatalf("unexpected checkout output %q", out)
	}
}

func TestPrintError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid code"), "not signed in: invalid code\n"},
		{pkgerrors.New(pkgerrors.CodeRateLimit, "slow down"), "too many attempts, try again shortly: slow down\n"},
		{pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"), "cart is empty\n"},
		{errors.New("boom"), "error: boom\n"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		printError(&buf, tc.err)
		if buf.String() != tc.want {
			t.Fatalf("printError(%v) = %q, want %q", tc.err, buf.String(), tc.want)
		}
	}
}
