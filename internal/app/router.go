package app

import (
	"database/sql"
	"net/http"
	"time"

	"clickerexam/internal/app/observability"
	"clickerexam/internal/exam"
	"clickerexam/internal/export"
	"clickerexam/internal/live"
	"clickerexam/internal/participant"
	"clickerexam/internal/question"
	"clickerexam/internal/report"
	"clickerexam/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Backend is what the HTTP layer needs from the process: the store, the
// frozen snapshot cache and, when running on Postgres, the raw pool for
// connection metrics.
type Backend struct {
	Store     store.Store
	Snapshots live.SnapshotSource
	DB        *sql.DB
}

func NewRouter(cfg Config, b Backend) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	metrics := observability.NewCollector(b.DB)
	r.Use(metrics.Middleware)

	questionHandler := question.NewHandler(question.NewService(b.Store))
	examHandler := exam.NewHandler(exam.NewService(b.Store))
	participantHandler := participant.NewHandler(participant.NewService(b.Store))

	liveSvc := live.NewService(b.Store, b.Snapshots).WithObserver(metrics)
	liveHandler := live.NewHandler(liveSvc)

	reportSvc := report.NewService(b.Store)
	reportHandler := report.NewHandler(reportSvc)
	exportHandler := export.NewHandler(export.NewService(reportSvc))

	syncLimiter := NewIPRateLimiter(cfg.SyncRateLimitPerMinute, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", metrics.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/questions", questionHandler.Create)
		api.Get("/questions/available", questionHandler.Available)
		api.Get("/questions/{id}", questionHandler.Get)
		api.Put("/questions/{id}", questionHandler.Update)

		api.Get("/exams", examHandler.List)
		api.Post("/exams", examHandler.Create)
		api.Get("/exams/{id}", examHandler.Get)
		api.Put("/exams/{id}", examHandler.Update)
		api.Get("/exams/{id}/questions", examHandler.ListQuestions)
		api.Post("/exams/{id}/questions", examHandler.UpsertQuestion)
		api.Delete("/exams/{id}/questions/{questionID}", examHandler.DeleteQuestion)
		api.Post("/exams/{id}/freeze", examHandler.Freeze)
		api.Get("/exams/{id}/snapshot", examHandler.Snapshot)
		api.Post("/exams/{id}/complete", examHandler.Complete)

		api.Post("/participants", participantHandler.Create)
		api.Post("/participants/{id}/clicker", participantHandler.AssignClicker)
		api.Post("/exams/{id}/participants", participantHandler.AssignToExam)
		api.Post("/exams/{id}/participants/import", participantHandler.ImportRoster)
		api.Get("/exams/{id}/attendance", reportHandler.Attendance)

		api.With(RateLimitMiddleware(syncLimiter)).Post("/exams/{id}/sync_live_results", liveHandler.Sync)
		api.Get("/exams/{id}/live", liveHandler.Stream)

		api.Get("/exams/{id}/report", reportHandler.Report)
		api.Get("/exams/{id}/leaderboard", reportHandler.Leaderboard)
		api.Get("/exams/{id}/export", exportHandler.Export)
		api.Get("/dashboard", reportHandler.Dashboard)
	})

	return r
}
