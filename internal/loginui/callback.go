package loginui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

const callbackPage = `<!doctype html><title>reddift</title><p>Authorization received. You can close this window.</p>`

// Loopback reports whether redirectURI points at this machine over plain
// HTTP, so a local listener can catch the redirect.
func Loopback(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// PasteHint tells the user where the redirect for a non-loopback URI with
// the given scheme ends up.
func PasteHint(scheme string) string {
	switch scheme {
	case "http", "https":
		return "After approving, copy the address your browser was sent to."
	case "":
		return "After approving, copy the redirect URL."
	}
	return fmt.Sprintf("After approving, copy the %s:// link Reddit handed to your app.", scheme)
}

// CallbackHandler forwards the first request on the redirect path to
// redirects as an absolute redirect URL. Later requests get a 410.
func CallbackHandler(redirectURI string, redirects chan<- string) (http.Handler, error) {
	base, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}

	path := base.Path
	if path == "" {
		path = "/"
	}

	delivered := make(chan struct{}, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		select {
		case delivered <- struct{}{}:
		default:
			http.Error(w, "authorization already received", http.StatusGone)
			return
		}

		got := *base
		got.RawQuery = r.URL.RawQuery
		redirects <- got.String()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, callbackPage)
	})
	return mux, nil
}

// ListenForRedirect serves CallbackHandler on the redirect URI's host until
// ctx ends. The returned channel receives at most one redirect.
func ListenForRedirect(ctx context.Context, redirectURI string, logger *slog.Logger) (<-chan string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}

	redirects := make(chan string, 1)
	handler, err := CallbackHandler(redirectURI, redirects)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", u.Host, err)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback listener stopped", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Debug("listening for redirect", slog.String("addr", ln.Addr().String()))
	return redirects, nil
}
