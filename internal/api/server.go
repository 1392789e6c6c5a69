// Package api serves stored corpora and their analyses as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/utakatalp/rank-stability/internal/analysis"
	"github.com/utakatalp/rank-stability/internal/league"
	"github.com/utakatalp/rank-stability/internal/store"
)

var errBadRequest = errors.New("bad request")

// CorpusStore is the read side of the store used by the API.
type CorpusStore interface {
	ListCorpora(ctx context.Context) ([]store.CorpusMeta, error)
	GetCorpus(ctx context.Context, id string) (store.CorpusMeta, error)
	LoadCorpus(ctx context.Context, id string) (store.CorpusMeta, []*league.RankHistory, error)
	LoadSeason(ctx context.Context, id string, season int) (*league.RankHistory, error)
}

// Defaults fill query parameters the client leaves out.
type Defaults struct {
	InitRound   int
	FitFrom     int
	Alternative analysis.Alternative
}

// Server exposes read-only endpoints over a CorpusStore.
type Server struct {
	store    CorpusStore
	defaults Defaults
	logger   *logrus.Logger
	router   *mux.Router
}

// NewServer builds the router.
func NewServer(s CorpusStore, defaults Defaults, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if defaults.InitRound <= 0 {
		defaults.InitRound = 1
	}
	if defaults.FitFrom <= 0 {
		defaults.FitFrom = 1
	}

	srv := &Server{store: s, defaults: defaults, logger: logger, router: mux.NewRouter()}
	srv.router.Use(srv.logRequests)

	srv.router.HandleFunc("/healthz", srv.healthCheck).Methods("GET")
	srv.router.HandleFunc("/corpora", srv.listCorpora).Methods("GET")
	srv.router.HandleFunc("/corpora/{id}", srv.getCorpus).Methods("GET")
	srv.router.HandleFunc("/corpora/{id}/seasons/{season:[0-9]+}", srv.getSeason).Methods("GET")
	srv.router.HandleFunc("/corpora/{id}/seasons/{season:[0-9]+}/compare", srv.compareRound).Methods("GET")
	srv.router.HandleFunc("/corpora/{id}/curves", srv.getCurves).Methods("GET")
	srv.router.HandleFunc("/corpora/{id}/transitions", srv.getTransitions).Methods("GET")
	srv.router.HandleFunc("/corpora/{id}/powerlaw", srv.getPowerLaw).Methods("GET")
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request served")
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listCorpora(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListCorpora(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []store.CorpusMeta{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) getCorpus(w http.ResponseWriter, r *http.Request) {
	meta, err := s.store.GetCorpus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meta)
}

// historyResponse is a rank history matrix keyed by club; positions[club][i]
// is the position after round i+1.
type historyResponse struct {
	Clubs     []string         `json:"clubs"`
	Rounds    int              `json:"rounds"`
	Positions map[string][]int `json:"positions"`
}

func (s *Server) loadSeason(r *http.Request) (*league.RankHistory, error) {
	vars := mux.Vars(r)
	season, err := strconv.Atoi(vars["season"])
	if err != nil {
		return nil, fmt.Errorf("season %q: %w", vars["season"], errBadRequest)
	}
	return s.store.LoadSeason(r.Context(), vars["id"], season)
}

func (s *Server) getSeason(w http.ResponseWriter, r *http.Request) {
	h, err := s.loadSeason(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := historyResponse{
		Clubs:     h.Clubs(),
		Rounds:    h.Rounds(),
		Positions: make(map[string][]int, h.Teams()),
	}
	for _, club := range resp.Clubs {
		positions, err := h.Positions(club)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Positions[club] = positions
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type comparisonResponse struct {
	Round       int      `json:"round"`
	Correlation *float64 `json:"correlation"`
	PValue      *float64 `json:"p_value"`
	Distance    *float64 `json:"distance"`
	Tau         *float64 `json:"tau"`
}

func (s *Server) compareRound(w http.ResponseWriter, r *http.Request) {
	alt, err := s.alternative(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	h, err := s.loadSeason(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	round, err := intParam(r, "round", 1)
	if err != nil {
		s.writeError(w, err)
		return
	}

	partial, err := analysis.RoundTable(h, round)
	if err != nil {
		s.writeError(w, err)
		return
	}
	final, err := analysis.RoundTable(h, h.Rounds())
	if err != nil {
		s.writeError(w, err)
		return
	}
	cmp, err := analysis.Compare(partial, final, alt)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, comparisonResponse{
		Round:       round,
		Correlation: finite(cmp.Correlation),
		PValue:      finite(cmp.PValue),
		Distance:    finite(cmp.Distance.Normalized),
		Tau:         finite(cmp.Distance.Tau),
	})
}

type curvesResponse struct {
	Seasons     int        `json:"seasons"`
	Alternative string     `json:"alternative"`
	Correlation []*float64 `json:"correlation"`
	PValue      []*float64 `json:"p_value"`
	Distance    []*float64 `json:"distance"`
}

func (s *Server) getCurves(w http.ResponseWriter, r *http.Request) {
	alt, err := s.alternative(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_, corpus, err := s.store.LoadCorpus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	curves, err := analysis.CorpusCurves(corpus, alt)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, curvesResponse{
		Seasons:     len(corpus),
		Alternative: alt.String(),
		Correlation: finiteAll(curves.Correlation),
		PValue:      finiteAll(curves.PValue),
		Distance:    finiteAll(curves.Distance),
	})
}

func (s *Server) getTransitions(w http.ResponseWriter, r *http.Request) {
	_, corpus, err := s.store.LoadCorpus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(corpus) == 0 {
		s.writeError(w, analysis.ErrEmptyCorpus)
		return
	}

	rounds := corpus[0].Rounds()
	from, err := intParam(r, "from", min(s.defaults.InitRound, rounds))
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := intParam(r, "to", rounds)
	if err != nil {
		s.writeError(w, err)
		return
	}

	t, err := analysis.TransitionMatrix(corpus, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

type powerLawResponse struct {
	From         int        `json:"from"`
	To           int        `json:"to"`
	A            *float64   `json:"a"`
	B            *float64   `json:"b"`
	StdErrA      *float64   `json:"std_err_a"`
	StdErrB      *float64   `json:"std_err_b"`
	RSquared     *float64   `json:"r_squared"`
	ObservedArea *float64   `json:"observed_area"`
	FittedArea   *float64   `json:"fitted_area"`
	Observed     []*float64 `json:"observed"`
	Fitted       []*float64 `json:"fitted"`
}

func (s *Server) getPowerLaw(w http.ResponseWriter, r *http.Request) {
	alt, err := s.alternative(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_, corpus, err := s.store.LoadCorpus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	curves, err := analysis.CorpusCurves(corpus, alt)
	if err != nil {
		s.writeError(w, err)
		return
	}

	from, err := intParam(r, "from", s.defaults.FitFrom)
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := intParam(r, "to", len(curves.Distance))
	if err != nil {
		s.writeError(w, err)
		return
	}

	fit, err := analysis.FitWindow(curves.Distance, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, powerLawResponse{
		From:         fit.From,
		To:           fit.To,
		A:            finite(fit.Law.A),
		B:            finite(fit.Law.B),
		StdErrA:      finite(math.Sqrt(fit.Covariance[0][0])),
		StdErrB:      finite(math.Sqrt(fit.Covariance[1][1])),
		RSquared:     finite(fit.RSquared),
		ObservedArea: finite(fit.ObservedArea),
		FittedArea:   finite(fit.FittedArea),
		Observed:     finiteAll(fit.Observed),
		Fitted:       finiteAll(fit.Fitted),
	})
}

func (s *Server) alternative(r *http.Request) (analysis.Alternative, error) {
	v := r.URL.Query().Get("alternative")
	if v == "" {
		return s.defaults.Alternative, nil
	}
	return analysis.ParseAlternative(v)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, v, errBadRequest)
	}
	return n, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrCorpusNotFound),
		errors.Is(err, store.ErrSeasonNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, league.ErrRoundOutOfRange),
		errors.Is(err, analysis.ErrUnknownAlternative),
		errors.Is(err, analysis.ErrInsufficientData),
		errors.Is(err, analysis.ErrLengthMismatch),
		errors.Is(err, analysis.ErrEmptyCorpus):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("encoding response")
	}
}

// finite maps NaN and infinities to null, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finiteAll(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = finite(v)
	}
	return out
}
