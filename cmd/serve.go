package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/orchestrator"
	"github.com/sells-group/org-intel/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Engine, env.Store),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API surface: job submission and the per-company
// read endpoints, all thin wrappers over the engine.
func newRouter(eng *orchestrator.Engine, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/jobs", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Companies   []orchestrator.CompanyRef `json:"companies"`
			SourceTypes []model.SourceType        `json:"source_types"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.Companies) == 0 {
			writeError(w, http.StatusBadRequest, "companies is required")
			return
		}

		job, err := eng.SubmitJob(req.Context(), body.Companies, body.SourceTypes)
		if err != nil {
			if eris.Is(err, orchestrator.ErrUnknownSource) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		// The job runs detached from the request; clients poll GET /jobs/{id}.
		go func() {
			if _, err := eng.Run(context.Background(), job.ID); err != nil {
				zap.L().Error("job run failed",
					zap.String("job_id", job.ID),
					zap.Error(err),
				)
			}
		}()

		writeJSON(w, http.StatusAccepted, job)
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		job, err := eng.GetJobStatus(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if eris.Is(err, orchestrator.ErrJobNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	r.Get("/companies/{id}/roster", func(w http.ResponseWriter, req *http.Request) {
		entries, err := eng.GetCurrentRoster(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/companies/{id}/snapshot", func(w http.ResponseWriter, req *http.Request) {
		snap, err := eng.GetLatestSnapshot(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if snap == nil {
			writeError(w, http.StatusNotFound, "no snapshot")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	// Manual change entry, for events researchers learn of outside the
	// collection sources. The store's dedup key still applies.
	r.Post("/companies/{id}/changes", func(w http.ResponseWriter, req *http.Request) {
		var ev model.ChangeEvent
		if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if ev.PersonName == "" {
			writeError(w, http.StatusBadRequest, "person_name is required")
			return
		}
		if !validChangeType(ev.Type) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown change type %q", ev.Type))
			return
		}

		ev.ID = uuid.NewString()
		ev.CompanyID = chi.URLParam(req, "id")
		now := time.Now().UTC()
		if ev.EffectiveDate.IsZero() {
			ev.EffectiveDate = now
		}
		ev.CreatedAt = now

		if err := st.SaveChangeEvent(req.Context(), &ev); err != nil {
			if eris.Is(err, store.ErrDuplicateEvent) {
				writeError(w, http.StatusConflict, "duplicate change event")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, ev)
	})

	r.Get("/companies/{id}/changes", func(w http.ResponseWriter, req *http.Request) {
		filter := model.ChangeFilter{CompanyID: chi.URLParam(req, "id")}
		q := req.URL.Query()
		for _, t := range q["type"] {
			filter.Types = append(filter.Types, model.ChangeType(t))
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}
		if v := q.Get("since"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be RFC3339")
				return
			}
			filter.Since = &ts
		}

		events, err := eng.GetChangeFeed(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, events)
	})

	return r
}

func validChangeType(t model.ChangeType) bool {
	switch t {
	case model.ChangeHire, model.ChangeDeparture, model.ChangePromotion,
		model.ChangeDemotion, model.ChangeLateral, model.ChangeRetirement,
		model.ChangeBoardAppointed, model.ChangeBoardDeparture, model.ChangeInterim:
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
