package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/metro-depot/fleet/induction/internal/config"
	"github.com/metro-depot/fleet/induction/internal/fixtures"
	"github.com/metro-depot/fleet/induction/internal/models"
	"github.com/metro-depot/fleet/induction/internal/planner"
	"github.com/metro-depot/fleet/induction/internal/service"
	"github.com/metro-depot/fleet/induction/internal/store"
)

const (
	codeBadRequest  = "INDUCTION_BAD_REQUEST"
	codeNotFound    = "INDUCTION_NOT_FOUND"
	codeConflict    = "INDUCTION_CONFLICT"
	codeRateLimited = "INDUCTION_RATE_LIMITED"
	codeInternal    = "INDUCTION_INTERNAL"

	maxBodyBytes    = 64 * 1024
	maxFixtureBytes = 4 << 20
)

type Server struct {
	cfg         config.Config
	db          store.Store
	svc         *service.Service
	planLimiter *rate.Limiter
	logger      *slog.Logger
}

func New(cfg config.Config, db store.Store, svc *service.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.PlanRPS
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.PlanBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		cfg:         cfg,
		db:          db,
		svc:         svc,
		planLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:      logger.With("component", "httpserver"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.With(s.limitPlans).Post("/induction/plan", s.handleGeneratePlan)
	r.Get("/fleet/status", s.handleFleetStatus)

	r.Route("/trainsets", func(r chi.Router) {
		r.Get("/", s.handleListTrainsets)
		r.Post("/", s.handleCreateTrainset)
		r.Route("/{number}", func(r chi.Router) {
			r.Get("/", s.handleGetTrainset)
			r.Patch("/", s.handleUpdateTrainset)
			r.Delete("/", s.handleDeleteTrainset)
			r.Get("/evaluation", s.handleEvaluateTrainset)
			r.Post("/certificates", addRecord(s, s.db.AddCertificate))
			r.Post("/job-cards", addRecord(s, s.db.AddJobCard))
			r.Post("/branding", addRecord(s, s.db.AddBrandingContract))
			r.Post("/cleaning-slots", addRecord(s, s.db.AddCleaningSlot))
			r.Post("/mileage", addRecord(s, s.db.RecordMileage))
		})
	})

	r.Patch("/job-cards/{id}", s.handleUpdateJobCard)
	r.Patch("/cleaning-slots/{id}", s.handleUpdateCleaningSlot)
	for _, kind := range []store.RecordKind{store.KindCertificate, store.KindJobCard, store.KindBranding, store.KindCleaningSlot} {
		r.Delete("/"+string(kind)+"/{id}", s.deleteRecord(kind))
	}

	r.Get("/stabling-bays", s.handleListBays)
	r.Put("/stabling-bays/{bay}", s.handleUpsertBay)

	r.Delete("/data/clear", s.handleClearData)
	r.Post("/data/load", s.handleLoadData)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.db.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = "down"
		status["error"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status["db"] = "up"
	respondJSON(w, http.StatusOK, status)
}

type planRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	fs, err := s.svc.GeneratePlan(r.Context(), req.Date)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fs)
}

func (s *Server) handleFleetStatus(w http.ResponseWriter, r *http.Request) {
	fs, err := s.svc.FleetStatus(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fs)
}

func (s *Server) handleListTrainsets(w http.ResponseWriter, r *http.Request) {
	trainsets, err := s.db.ListTrainsets(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if trainsets == nil {
		trainsets = []models.Trainset{}
	}
	respondJSON(w, http.StatusOK, trainsets)
}

func (s *Server) handleCreateTrainset(w http.ResponseWriter, r *http.Request) {
	var in store.TrainsetInput
	if err := decodeJSON(w, r, &in, maxBodyBytes); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	ts, err := s.db.CreateTrainset(r.Context(), in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.svc.Invalidate(r.Context())
	respondJSON(w, http.StatusCreated, ts)
}

func (s *Server) handleGetTrainset(w http.ResponseWriter, r *http.Request) {
	detail, err := s.db.GetTrainsetDetail(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateTrainset(w http.ResponseWriter, r *http.Request) {
	var in store.TrainsetUpdate
	if err := decodeJSON(w, r, &in, maxBodyBytes); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	ts, err := s.db.UpdateTrainset(r.Context(), chi.URLParam(r, "number"), in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.svc.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, ts)
}

func (s *Server) handleDeleteTrainset(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteTrainset(r.Context(), chi.URLParam(r, "number")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.svc.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluateTrainset(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.EvaluateTrainset(r.Context(), chi.URLParam(r, "number"), r.URL.Query().Get("date"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// addRecord adapts a store "add child record" method into a POST handler.
func addRecord[In any, Out any](s *Server, add func(context.Context, string, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeJSON(w, r, &in, maxBodyBytes); err != nil {
			respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		out, err := add(r.Context(), chi.URLParam(r, "number"), in)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.svc.Invalidate(r.Context())
		respondJSON(w, http.StatusCreated, out)
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateJobCard(w http.ResponseWriter, r *http.Request) {
	id, req, ok := s.statusUpdate(w, r)
	if !ok {
		return
	}
	status := models.JobCardStatus(req.Status)
	if !store.ValidJobCardStatus(status) {
		respondError(w, http.StatusBadRequest, codeBadRequest, "unknown job card status: "+req.Status)
		return
	}
	jc, err := s.db.UpdateJobCardStatus(r.Context(), id, status)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.svc.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, jc)
}

func (s *Server) handleUpdateCleaningSlot(w http.ResponseWriter, r *http.Request) {
	id, req, ok := s.statusUpdate(w, r)
	if !ok {
		return
	}
	status := models.CleaningStatus(req.Status)
	if !store.ValidCleaningStatus(status) {
		respondError(w, http.StatusBadRequest, codeBadRequest, "unknown cleaning status: "+req.Status)
		return
	}
	slot, err := s.db.UpdateCleaningSlotStatus(r.Context(), id, status)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.svc.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, slot)
}

func (s *Server) statusUpdate(w http.ResponseWriter, r *http.Request) (uuid.UUID, statusRequest, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid id")
		return uuid.Nil, statusRequest{}, false
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return uuid.Nil, statusRequest{}, false
	}
	return id, req, true
}

func (s *Server) deleteRecord(kind store.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusBadRequest, codeBadRequest, "invalid id")
			return
		}
		if err := s.db.DeleteRecord(r.Context(), kind, id); err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.svc.Invalidate(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListBays(w http.ResponseWriter, r *http.Request) {
	bays, err := s.db.ListStablingBays(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if bays == nil {
		bays = []models.StablingBay{}
	}
	respondJSON(w, http.StatusOK, bays)
}

func (s *Server) handleUpsertBay(w http.ResponseWriter, r *http.Request) {
	var in store.StablingBayInput
	if err := decodeJSON(w, r, &in, maxBodyBytes); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	bay := chi.URLParam(r, "bay")
	if in.BayNumber != "" && in.BayNumber != bay {
		respondError(w, http.StatusBadRequest, codeBadRequest, "bay_number does not match path")
		return
	}
	in.BayNumber = bay
	out, err := s.db.UpsertStablingBay(r.Context(), in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.svc.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.db.ClearAll(r.Context()); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.svc.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// handleLoadData accepts a YAML fleet fixture. ?replace=true clears first
// and ?rebase=YYYY-MM-DD moves the fixture's anchor to that date.
func (s *Server) handleLoadData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFixtureBytes)
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	fleet, err := fixtures.Parse(data)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("rebase"); raw != "" {
		day, err := s.svc.ParseDate(raw)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		fleet = fleet.Rebase(day)
	}
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	counts, err := fixtures.Load(r.Context(), s.db, fleet, fixtures.LoadOptions{Replace: replace})
	s.svc.Invalidate(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, counts)
}

func (s *Server) limitPlans(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.planLimiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			respondError(w, http.StatusTooManyRequests, codeRateLimited, "plan generation rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, store.ErrInvalid),
		errors.Is(err, fixtures.ErrInvalidFixture):
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, planner.ErrTrainsetNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, limit int64) error {
	if limit <= 0 {
		limit = 1 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
		"code":  code,
	})
}
