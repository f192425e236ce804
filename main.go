package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"evently/internal/api"
	"evently/internal/auth"
	"evently/internal/config"
	"evently/internal/database"
	"evently/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $"+config.EnvConfigPath+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := auth.Configure(auth.Settings{
		Secret:              cfg.JWTSecret,
		RefreshSecret:       cfg.JWTRefreshSecret,
		AccessTokenMinutes:  cfg.AccessTokenMinutes,
		RefreshTokenDays:    cfg.RefreshTokenDays,
		RememberRefreshDays: cfg.RememberRefreshDays,
		CookieSecure:        cfg.CookieSecure,
	}); err != nil {
		logrus.WithError(err).Fatal("invalid auth configuration")
	}

	db, err := database.Initialize(cfg.DBPath, cfg.DBEncryptionKey)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	if cfg.RunMigrations {
		logrus.Info("running database migrations")
		if err := api.RunMigrations(db); err != nil {
			logrus.WithError(err).Error("migration error")
		}
	} else {
		logrus.Info("migrations skipped (set RUN_MIGRATIONS=true to enable)")
	}

	var mailer *api.Mailer
	if cfg.SMTPConfigured() {
		mailer = api.NewMailer(api.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			UseTLS:   cfg.SMTPUseTLS,
		}, cfg.AppURL)
	} else {
		logrus.Warn("SMTP_HOST not set, reminder and announcement mail disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.EnableWorkers {
		logrus.WithField("interval", cfg.WorkerInterval).Info("starting background workers")
		go api.RunWorkers(ctx, db, mailer, cfg.WorkerInterval)
	} else {
		logrus.Info("background workers disabled (set ENABLE_WORKERS=true to enable)")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		Output: logrus.StandardLogger().Writer(),
	}))

	origins := cfg.Origins()
	if len(origins) == 0 {
		origins = []string{"http://localhost:80", "http://localhost:5173"}
		logrus.Warn("using default ALLOWED_ORIGINS, set ALLOWED_ORIGINS for production")
	}
	logrus.WithField("origins", origins).Info("CORS configured")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, db, api.Options{
		DisableRegistration: cfg.DisableRegistration,
		Mailer:              mailer,
	})

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("shutdown error")
		}
	}()

	logrus.WithField("port", cfg.Port).Info("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
