// Package api exposes the certification funnel over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/bands"
	"github.com/sells-group/proth-cli/internal/funnel"
	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/proth"
	"github.com/sells-group/proth-cli/internal/resonance"
	"github.com/sells-group/proth-cli/internal/store"
)

const maxBodyBytes = 1 << 20

// Server holds the handlers' dependencies. Store may be nil, in which case
// certification results are returned but not persisted and the record
// routes answer 503. ResonanceMaxN caps the O(sqrt n) score route; zero
// means no cap.
type Server struct {
	Funnel        *funnel.Funnel
	Scorer        *resonance.Scorer
	Store         store.Store
	Seed          int64
	Origins       []string
	ResonanceMaxN uint64

	requests atomic.Uint64
}

// CertifyRequest is the body of POST /v1/certify. Numbers are decimal
// strings so arbitrarily large candidates survive JSON.
type CertifyRequest struct {
	N       string `json:"N"`
	K       string `json:"k,omitempty"`
	Exp     *uint  `json:"n,omitempty"`
	Witness string `json:"witness_a,omitempty"`
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	origins := s.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/score/{n}", s.handleScore)
		r.Post("/certify", s.handleCertify)
		r.Get("/records", s.handleListRecords)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Get("/bands/{digits}", s.handleBands)
	})
	return r
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(chi.URLParam(r, "n"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "n must be an unsigned 64-bit integer")
		return
	}
	if s.ResonanceMaxN > 0 && n > s.ResonanceMaxN {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("n exceeds the resonance limit %d", s.ResonanceMaxN))
		return
	}
	writeJSON(w, http.StatusOK, s.Scorer.Evaluate(n))
}

func (s *Server) handleCertify(w http.ResponseWriter, r *http.Request) {
	var req CertifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := req.candidate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rng := proth.NewRand(s.Seed, s.requests.Add(1))
	rec, err := s.Funnel.Certify(r.Context(), c, rng)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	if s.Store != nil {
		if err := s.Store.SaveRecord(r.Context(), rec); err != nil {
			zap.L().Error("api: save record", zap.String("record_id", rec.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to persist record")
			return
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (req CertifyRequest) candidate() (model.Candidate, error) {
	c, err := model.ParseCandidate(req.N)
	if err != nil {
		return model.Candidate{}, eris.New("N must be a decimal integer >= 2")
	}
	if req.K != "" || req.Exp != nil {
		k, ok := new(big.Int).SetString(req.K, 10)
		if !ok || req.Exp == nil {
			return model.Candidate{}, eris.New("k and n must be given together")
		}
		c = c.WithDecomposition(k, *req.Exp)
	}
	if req.Witness != "" {
		a, ok := new(big.Int).SetString(req.Witness, 10)
		if !ok {
			return model.Candidate{}, eris.New("witness_a must be a decimal integer")
		}
		c = c.WithWitness(a)
	}
	return c, nil
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	q := r.URL.Query()
	filter := store.RecordFilter{Verdict: model.Verdict(q.Get("verdict"))}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	recs, err := s.Store.ListRecords(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if recs == nil {
		recs = []model.CertificationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	rec, err := s.Store.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	digits, err := strconv.Atoi(chi.URLParam(r, "digits"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "digits must be an integer")
		return
	}
	kMax := 9
	if v := r.URL.Query().Get("k_max"); v != "" {
		if kMax, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "k_max must be an integer")
			return
		}
	}
	out, err := bands.ForDigits(digits, kMax)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
