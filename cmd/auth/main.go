package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/audit"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/config"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/housekeeping"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/httpserver"
	authmw "github.com/JustineRobert/society-community-savings-app-sub001/internal/middleware"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/repo"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/service"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/signer"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/db"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/logging"
	loggingmw "github.com/JustineRobert/society-community-savings-app-sub001/pkg/middleware/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)

	sgn, err := signer.New(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("signer init error: %v", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &models.RefreshRecord{}); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	var emitter audit.Emitter = audit.NopEmitter{}
	if len(cfg.KafkaBrokers) > 0 {
		ke := audit.NewKafkaEmitter(cfg.KafkaBrokers, cfg.AuditTopic)
		defer ke.Close()
		emitter = ke
	}

	rp := repo.New(gdb)
	svc := &service.SessionService{
		Repo:             rp,
		Signer:           sgn,
		Audit:            emitter,
		RevokeAllOnReuse: cfg.ReusePolicy != config.ReusePolicySingle,
	}

	sweeper := housekeeping.NewSweeper(rp, cfg.PurgeRetention, logger)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("sweeper start: %v", err)
	}
	defer sweeper.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:   &httpserver.AuthHTTP{Svc: svc},
		Authenticator: authmw.NewAuthenticator(sgn, rp),
	})

	go func() {
		if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
