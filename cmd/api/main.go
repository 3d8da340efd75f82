package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/config"
	appHTTP "github.com/cmlabs-hris/payroll-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-backend-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/payroll-backend-go/internal/service/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/migrations"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logLevel := parseLevel(cfg.App.LogLevel)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})).With(
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolCfg := database.DefaultPoolConfig()
	poolCfg.MaxConns = cfg.Database.MaxConns
	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), poolCfg)
	if err != nil {
		slog.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, migrations.FS); err != nil {
		slog.Error("Error applying migrations", "error", err)
		os.Exit(1)
	}

	// Run lock: Redis when configured, otherwise in process
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Error connecting to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		locker = lock.NewRedisLocker(rdb, cfg.Redis.KeyPrefix)
	} else {
		slog.Warn("REDIS_ADDR not set, payroll run locks are local to this process")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("Error closing event publisher", "error", err)
		}
	}()

	employeeRepo := postgresql.NewEmployeeRepository(db)
	leaveRepo := postgresql.NewLeaveRepository(db)
	structureRepo := postgresql.NewSalaryStructureRepository(db)
	payslipRepo := postgresql.NewPayslipRepository(db)
	runRepo := postgresql.NewRunRepository(db)

	rules := payrollService.Rules{
		PFWageCeiling:  cfg.Payroll.PFWageCeiling,
		DeductionBasis: payrollService.DeductionBasis(cfg.Payroll.LeaveDeductionBasis),
		Currency:       cfg.Payroll.Currency,
	}
	tables := payrollService.DefaultTables()
	taxEngine := payrollService.NewTaxEngine(tables)
	calculator := payrollService.NewCalculator(tables, taxEngine, rules)
	leaveEngine := payrollService.NewLeaveDeductionEngine(leaveRepo)
	processor := payrollService.NewPayslipProcessor(structureRepo, payslipRepo, leaveEngine, calculator, rules, publisher)
	ledger := payrollService.NewLedger(employeeRepo, payslipRepo, runRepo, processor, locker, publisher, payrollService.LedgerOptions{
		Workers: cfg.Payroll.Workers,
		LockTTL: cfg.Payroll.RunLockTTL,
	})
	var serviceOpts []payrollService.ServiceOption
	if cfg.Storage.BasePath != "" {
		archive, err := storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.BaseURL)
		if err != nil {
			slog.Error("Failed to initialize payslip storage", "error", err)
			os.Exit(1)
		}
		serviceOpts = append(serviceOpts, payrollService.WithArchive(archive))
	}

	payrollSvc := payrollService.NewPayrollService(
		employeeRepo,
		structureRepo,
		payslipRepo,
		runRepo,
		tables,
		taxEngine,
		calculator,
		processor,
		ledger,
		rules,
		serviceOpts...,
	)

	scheduler := cron.NewScheduler(ctx)
	if err := cron.NewPayrollJobs(payrollSvc, cfg.Payroll.AutoRunDay, cfg.Payroll.AutoRunSchedule, cfg.Payroll.RunLockTTL).RegisterJobs(scheduler); err != nil {
		slog.Error("Error registering cron jobs", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)

	router := appHTTP.NewRouter(appHTTP.RouterConfig{
		AppName:        cfg.App.Name,
		Version:        cfg.App.Version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogLevel:       logLevel,
		FilesDir:       cfg.Storage.BasePath,
	}, JWTService, payrollHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
