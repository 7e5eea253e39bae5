package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/govuk-api-client/pkg/client"
	"github.com/Sternrassler/govuk-api-client/pkg/content"
	"github.com/Sternrassler/govuk-api-client/pkg/metrics"
	"github.com/Sternrassler/govuk-api-client/pkg/search"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GOV.UK APIs through a rate-limited local proxy",
		Long: "Exposes /content/<path>, /search?<options>, /health, /ready and\n" +
			"/metrics. Every upstream request is admitted by the configured\n" +
			"rate limit and retried like any other client call.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func (a *app) proxyMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(a.redis))
	mux.HandleFunc("GET /content/{path...}", contentHandler(a.content))
	mux.HandleFunc("GET /search", searchHandler(a.search))
	mux.Handle("GET "+metrics.Path, metrics.Handler())
	return mux
}

func (a *app) serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.proxyMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Str("user_agent", a.cfg.UserAgent).Msg("Starting GOV.UK proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports ready when the shared rate limit store answers. A
// proxy without Redis is always ready.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

func contentHandler(c *content.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := c.Get(r.Context(), r.PathValue("path"))
		if err != nil {
			writeProxyError(w, err)
			return
		}
		writeProxyJSON(w, item)
	}
}

func searchHandler(s *search.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := search.QueryFromMap(queryOptions(r.URL.Query()))
		if err != nil {
			writeProxyError(w, err)
			return
		}
		resp, err := s.Fetch(r.Context(), q)
		if err != nil {
			writeProxyError(w, err)
			return
		}
		writeProxyJSON(w, resp)
	}
}

// queryOptions converts request parameters to search options. fields is
// always a list; other repeated parameters keep their first value.
func queryOptions(params url.Values) map[string]any {
	options := make(map[string]any, len(params))
	for key, values := range params {
		if key == "fields" {
			fields := make([]any, 0, len(values))
			for _, v := range values {
				fields = append(fields, v)
			}
			options[key] = fields
			continue
		}
		options[key] = values[0]
	}
	return options
}

// proxyStatus maps a client error to the status the proxy answers with.
func proxyStatus(err error) int {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, content.ErrNoPath),
		errors.Is(err, search.ErrNoQuery),
		errors.Is(err, search.ErrFieldsNotList),
		errors.Is(err, search.ErrUnknownOption),
		errors.Is(err, search.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return apiErr.StatusCode
	default:
		return http.StatusBadGateway
	}
}

func writeProxyError(w http.ResponseWriter, err error) {
	http.Error(w, fmt.Sprintf("GOV.UK request failed: %v", err), proxyStatus(err))
}

func writeProxyJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = printJSON(w, v)
}
