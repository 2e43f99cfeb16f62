// Package api serves the published catalog over read-only HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/devblac/dex-catalog/internal/allowlist"
	"github.com/devblac/dex-catalog/internal/artifact"
	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/chains"
	"github.com/devblac/dex-catalog/internal/health"
	"github.com/devblac/dex-catalog/internal/report"
)

// Error codes returned in the JSON error body.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidChain = "INVALID_CHAIN"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunSource returns the latest recorded run.
type RunSource interface {
	LatestReport(ctx context.Context) (*report.Report, bool, error)
}

// Options wires the server's read-only dependencies. Protocols, Runs and
// Metrics are optional.
type Options struct {
	Artifacts      *artifact.Writer
	Chains         *chains.Registry
	Protocols      *allowlist.List
	Runs           RunSource
	Health         health.Checker
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server exposes artifacts, chains and run state.
type Server struct {
	router *mux.Router
	opts   Options
	log    *zap.Logger
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Artifacts == nil || opts.Chains == nil {
		return nil, fmt.Errorf("api: artifacts and chains are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{router: mux.NewRouter(), opts: opts, log: opts.Logger}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/chains", s.handleChains()).Methods(http.MethodGet)
	api.HandleFunc("/protocols", s.handleProtocols()).Methods(http.MethodGet)
	api.HandleFunc("/protocols/{slug}", s.handleProtocol()).Methods(http.MethodGet)
	api.HandleFunc("/protocols/{slug}/{chain}", s.handleDeployment()).Methods(http.MethodGet)
	api.HandleFunc("/runs/latest", s.handleLatestRun()).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", health.Handler(s.opts.Health)).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// ChainView is a chain in API responses.
type ChainView struct {
	ID      catalog.ChainID `json:"id"`
	Name    string          `json:"name"`
	Aliases []string        `json:"aliases,omitempty"`
}

// DeploymentRef points at one published artifact.
type DeploymentRef struct {
	ChainID   catalog.ChainID `json:"chain_id"`
	ChainName string          `json:"chain_name,omitempty"`
	Path      string          `json:"path"`
	CID       string          `json:"cid"`
}

// ProtocolView is a protocol with its published chains.
type ProtocolView struct {
	Slug        string          `json:"slug"`
	DisplayName string          `json:"display_name"`
	Deployments []DeploymentRef `json:"deployments"`
}

func (s *Server) handleChains() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := s.opts.Chains.Chains()
		out := make([]ChainView, 0, len(list))
		for _, c := range list {
			out = append(out, ChainView{ID: c.ID, Name: c.Name, Aliases: c.Aliases})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleProtocols() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := s.published()
		if err != nil {
			s.log.Error("read index", zap.Error(err))
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "catalog index unavailable")
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (s *Server) handleProtocol() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["slug"]
		views, err := s.published()
		if err != nil {
			s.log.Error("read index", zap.Error(err))
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "catalog index unavailable")
			return
		}
		for _, v := range views {
			if v.Slug == slug {
				writeJSON(w, http.StatusOK, v)
				return
			}
		}
		writeError(w, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("protocol %q has no published deployments", slug))
	}
}

// handleDeployment serves the artifact bytes exactly as published. The chain
// segment may be a numeric ID or any registered alias.
func (s *Server) handleDeployment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id, err := s.opts.Chains.Resolve(vars["chain"])
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidChain, err.Error())
			return
		}
		pair := catalog.Pair{Protocol: vars["slug"], ChainID: id}
		_, data, err := s.opts.Artifacts.Read(pair)
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("no artifact for %s", pair))
			return
		}
		if err != nil {
			s.log.Error("read artifact", zap.String("pair", pair.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "artifact unreadable")
			return
		}
		if c, err := artifact.ContentID(data); err == nil {
			w.Header().Set("ETag", `"`+c.String()+`"`)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func (s *Server) handleLatestRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Runs == nil {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "no run ledger configured")
			return
		}
		rep, ok, err := s.opts.Runs.LatestReport(r.Context())
		if err != nil {
			s.log.Error("latest run", zap.Error(err))
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "run ledger unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "no runs recorded")
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// published reads the index and groups it per protocol, ordered by slug
// then chain ID.
func (s *Server) published() ([]ProtocolView, error) {
	idx, err := s.opts.Artifacts.ReadIndex()
	if err != nil {
		return nil, err
	}
	views := make([]ProtocolView, 0, len(idx))
	for slug, byChain := range idx {
		v := ProtocolView{Slug: slug, DisplayName: slug, Deployments: []DeploymentRef{}}
		if s.opts.Protocols != nil {
			if p, ok := s.opts.Protocols.Lookup(slug); ok {
				v.DisplayName = p.DisplayName
			}
		}
		for chain, cid := range byChain {
			n, err := strconv.ParseUint(chain, 10, 64)
			if err != nil {
				continue
			}
			id := catalog.ChainID(n)
			name, _ := s.opts.Chains.Name(id)
			pair := catalog.Pair{Protocol: slug, ChainID: id}
			v.Deployments = append(v.Deployments, DeploymentRef{ChainID: id, ChainName: name, Path: artifact.RelPath(pair), CID: cid})
		}
		sort.Slice(v.Deployments, func(i, j int) bool { return v.Deployments[i].ChainID < v.Deployments[j].ChainID })
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Slug < views[j].Slug })
	return views, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, map[string]APIError{"error": {Code: errCode, Message: message}})
}
