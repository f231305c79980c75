package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classtrack/attendance-api/internal/config"
	"github.com/classtrack/attendance-api/internal/geo"
	"github.com/classtrack/attendance-api/internal/logging"
	miniorepo "github.com/classtrack/attendance-api/internal/repository/minio"
	"github.com/classtrack/attendance-api/internal/repository/postgres"
	"github.com/classtrack/attendance-api/internal/service"
	transporthttp "github.com/classtrack/attendance-api/internal/transport/http"
	"github.com/classtrack/attendance-api/internal/util"
)

func main() {
	cfg := config.Load()

	if cfg.LogstashTCPAddr != "" {
		writer, err := logging.NewLogstashWriter(cfg.LogstashTCPAddr)
		if err != nil {
			log.Printf("logstash mirror disabled: %v", err)
		} else {
			defer writer.Close()
			log.SetOutput(io.MultiWriter(os.Stderr, writer))
		}
	}

	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	attendanceRepo := postgres.NewAttendanceRepo(db)

	jwtManager := util.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(userRepo, jwtManager, cfg.GoogleAudience)

	sessionConfig := service.SessionConfig{
		TTL:              cfg.SessionTTL,
		RotationInterval: cfg.RotationInterval,
		AnchorPolicy:     cfg.AnchorPolicy,
		PayloadFormat:    cfg.PayloadFormat,
	}
	if cfg.FixedAnchorLat != nil && cfg.FixedAnchorLng != nil {
		sessionConfig.FixedAnchor = &geo.Point{Lat: *cfg.FixedAnchorLat, Lng: *cfg.FixedAnchorLng}
	}
	sessionService := service.NewSessionService(sessionRepo, sessionConfig)
	defer sessionService.Shutdown()

	attendanceService := service.NewAttendanceService(attendanceRepo)
	verificationService := service.NewVerificationService(sessionRepo, attendanceService, service.VerificationConfig{
		Validator: geo.Validator{
			AllowedRadiusMeters: cfg.AllowedRadiusMeters,
			MaxAccuracyMeters:   cfg.MaxAccuracyMeters,
		},
		LocationTimeout: cfg.LocationTimeout,
	})

	var reportService *service.ReportService
	if cfg.MinIOEndpoint != "" {
		client, err := miniorepo.NewClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
		if err != nil {
			log.Fatalf("connect to object storage: %v", err)
		}
		storage := miniorepo.NewStorage(client, cfg.MinIOPublicURL, cfg.MinIOUseSSL)
		reportService = service.NewReportService(attendanceService, storage, cfg.MinIOBucketReport)
	} else {
		log.Print("MINIO_ENDPOINT not set, report export disabled")
	}

	e := transporthttp.NewRouter(cfg.AllowOrigins)
	transporthttp.RegisterAuth(e, authService)
	transporthttp.RegisterSessions(e, authService, sessionService, attendanceService, reportService)
	transporthttp.RegisterScan(e, authService, verificationService)
	transporthttp.RegisterSwagger(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
