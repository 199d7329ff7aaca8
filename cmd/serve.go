package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/askdb/internal/model"
	"github.com/sells-group/askdb/internal/pipeline"
	"github.com/sells-group/askdb/internal/store"
)

var servePort int

// generator is the pipeline surface the HTTP layer needs.
type generator interface {
	Generate(ctx context.Context, question, userID string, policy *pipeline.StageModelPolicy) (*model.GenerateResult, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the generation and status-polling server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		router := newRouter(ctx, env.Pipeline, env.Store, env.Policy)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP API. Generation is asynchronous: the caller gets
// a user id back immediately and polls the status endpoint for progress.
func newRouter(runCtx context.Context, gen generator, st store.Store, policy *pipeline.StageModelPolicy) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/generate", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Question string `json:"question"`
			UserID   string `json:"user_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if body.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		userID := body.UserID
		if userID == "" {
			userID = uuid.New().String()
		}

		go func() {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("generation panicked",
						zap.String("user_id", userID),
						zap.Any("panic", r))
				}
			}()

			result, err := gen.Generate(runCtx, body.Question, userID, policy)
			if err != nil {
				zap.L().Error("generation failed",
					zap.String("user_id", userID),
					zap.Error(err))
				return
			}
			zap.L().Info("generation complete",
				zap.String("user_id", userID),
				zap.Bool("cancelled", result.Cancelled),
				zap.Int("sql_len", len(result.SQL)))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "accepted",
			"user_id": userID,
		})
	})

	r.Get("/api/status/{userID}", func(w http.ResponseWriter, req *http.Request) {
		row, err := st.Read(req.Context(), chi.URLParam(req, "userID"))
		if err != nil {
			zap.L().Error("status read failed", zap.Error(err))
			http.Error(w, `{"error":"status read failed"}`, http.StatusInternalServerError)
			return
		}
		if row == nil {
			http.Error(w, `{"error":"no status for user"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, row)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
