package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterConfig struct {
	AppName        string
	Version        string
	Env            string
	AllowedOrigins []string
	LogLevel       slog.Level
	// FilesDir is served under /api/v1/files when set
	FilesDir string
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, payrollHandler PayrollHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", cfg.AppName),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  cfg.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			if cfg.FilesDir != "" {
				r.Handle("/files/*", http.StripPrefix("/api/v1/files/", http.FileServer(http.Dir(cfg.FilesDir))))
			}

			r.Route("/payroll", func(r chi.Router) {
				r.Post("/tax/preview", payrollHandler.PreviewTax)

				r.Route("/employees/{employeeID}", func(r chi.Router) {
					r.Get("/structure", payrollHandler.GetStructure)
					r.Get("/structure/validation", payrollHandler.ValidateStructure)
					r.Get("/ctc-breakdown", payrollHandler.GetCTCBreakdown)
					r.Get("/payslips/{year}/{month}/detail", payrollHandler.GetDetailedPayslip)

					// Admin only
					r.Group(func(r chi.Router) {
						r.Use(middleware.AdminOnly)
						r.Post("/structure/calculate", payrollHandler.CalculateStructure)
						r.Put("/structure", payrollHandler.UpdateStructure)
						r.Post("/monthly-validation", payrollHandler.ValidateMonth)
					})
				})

				r.Route("/payslips", func(r chi.Router) {
					r.Get("/", payrollHandler.ListPayslips)
					r.Get("/{id}", payrollHandler.GetPayslip)
					r.Get("/{id}/pdf", payrollHandler.DownloadPayslip)

					// Admin only
					r.Group(func(r chi.Router) {
						r.Use(middleware.AdminOnly)
						r.Post("/", payrollHandler.ProcessPayslip)
						r.Post("/finalize", payrollHandler.FinalizePayslips)
					})
				})

				r.Route("/runs", func(r chi.Router) {
					r.Get("/", payrollHandler.ListRuns)
					r.Get("/{id}", payrollHandler.GetRun)

					// Admin only
					r.With(middleware.AdminOnly).Post("/", payrollHandler.RunMonthly)
				})
			})
		})
	})
	return r
}
