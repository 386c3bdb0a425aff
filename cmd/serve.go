package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-navigator/internal/model"
	"github.com/sells-group/lead-navigator/internal/service"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Service),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes over the orchestration service.
func newRouter(svc *service.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/leads", func(w http.ResponseWriter, r *http.Request) {
			leads, err := svc.GetAllLeads(r.Context())
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			if leads == nil {
				leads = []model.Lead{}
			}
			respondJSON(w, http.StatusOK, leads)
		})

		r.Get("/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
			lead, err := svc.GetLeadByID(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			if lead == nil {
				respondJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
				return
			}
			respondJSON(w, http.StatusOK, lead)
		})

		r.Get("/leads/{id}/insights", func(w http.ResponseWriter, r *http.Request) {
			lead, err := svc.GetLeadByID(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			if lead == nil {
				respondJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
				return
			}
			insights, err := svc.GetOrGenerateInsights(r.Context(), *lead)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			respondJSON(w, http.StatusOK, insights)
		})

		r.Get("/search", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query().Get("q")
			if q == "" {
				respondJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
				return
			}
			leads, err := svc.SearchLeads(r.Context(), q)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			if leads == nil {
				leads = []model.Lead{}
			}
			respondJSON(w, http.StatusOK, leads)
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, svc.GetDataStats(r.Context()))
		})

		r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.RefreshAllData(r.Context()); err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			respondJSON(w, http.StatusOK, svc.GetDataStats(r.Context()))
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	zap.L().Error("request failed", zap.Error(err))
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
