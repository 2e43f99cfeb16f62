package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker holds the dependency probes reported by /healthz. Nil probes are
// skipped.
type Checker struct {
	DBPing     func(ctx context.Context) error
	MirrorPing func(ctx context.Context) error
	OutputDir  func(ctx context.Context) error
}

// Handler answers health checks with a JSON status per probe.
func Handler(checker Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		probes := []struct {
			name string
			ping func(ctx context.Context) error
		}{
			{"db", checker.DBPing},
			{"mirror", checker.MirrorPing},
			{"output", checker.OutputDir},
		}
		for _, p := range probes {
			if p.ping == nil {
				continue
			}
			if err := p.ping(ctx); err != nil {
				status[p.name] = "fail"
				code = http.StatusServiceUnavailable
			} else {
				status[p.name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// Serve starts a minimal /healthz handler.
func Serve(addr string, checker Checker) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", Handler(checker))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Shutdown gracefully shuts down the health server.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
