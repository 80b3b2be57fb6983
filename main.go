package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"posdesk/m/internal/api"
	"posdesk/m/internal/config"
	"posdesk/m/internal/database"
	"posdesk/m/internal/migrations"
	"posdesk/m/internal/session"
)

func main() {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)

	sessions := session.NewStore(db)
	if n, err := sessions.PurgeExpired(); err != nil {
		logger.Warnf("session purge failed: %v", err)
	} else if n > 0 {
		logger.Infof("purged %d expired sessions", n)
	}

	handler := api.New(db, sessions, logger, api.Options{
		CookieName: cfg.SessionCookie,
		Location:   cfg.Location(),
		StaticDir:  cfg.StaticDir,
	})

	logger.Infof("posdesk server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
