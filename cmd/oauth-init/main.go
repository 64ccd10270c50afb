// Command oauth-init authorizes the alert worker to append to a Google
// Sheet as a user, for accounts that cannot share the sheet with a service
// account. It prints a consent URL, waits for the redirect on localhost and
// stores the token where the notifier looks for it.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/notify"
)

const authTimeout = 5 * time.Minute

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), "text", os.Stderr).WithComponent(applog.ComponentNotify)

	cfg, err := notify.OAuthClientConfig()
	cli.ExitOnError(logger, "OAuth client configuration failed", err)

	port := os.Getenv("OAUTH_REDIRECT_PORT")
	if port == "" {
		port = "8085"
	}
	// The redirect URI must be registered on the OAuth client.
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	ln, err := net.Listen("tcp", "localhost:"+port)
	cli.ExitOnError(logger, "Failed to start callback listener", err)

	tok, err := authorize(ctx, cfg, ln, func(url string) {
		fmt.Printf("Open this URL to authorize:\n%s\n", url)
	})
	cli.ExitOnError(logger, "Authorization failed", err)

	path := notify.TokenFile()
	cli.ExitOnError(logger, "Failed to save token", notify.SaveToken(path, tok))
	logger.Info("Saved OAuth token", "path", path)
}

// authorize runs the authorization code flow against a one-shot callback
// server on ln. The listener is closed on return.
func authorize(ctx context.Context, cfg *oauth2.Config, ln net.Listener, prompt func(url string)) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("consent denied: %s", q.Get("error")):
			default:
			}
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			select {
			case codeCh <- q.Get("code"):
			default:
			}
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for consent: %w", ctx.Err())
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
