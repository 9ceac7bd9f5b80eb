package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"aimarket/internal/auth"
	"aimarket/internal/config"
	"aimarket/internal/httpserver"
	"aimarket/internal/logger"
	"aimarket/internal/models"
	"aimarket/internal/services/catalog"
	"aimarket/internal/services/images"
	"aimarket/internal/services/mailer"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	cfg, err := config.NewConfig()
	if err != nil {
		lg.Fatalw("config load failed", "error", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Profile{}, &models.Session{}, &models.VerificationToken{},
		&models.Product{}, &models.AuditLog{}, &models.ChatMessage{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaultAdmin(db, lg)

	mc, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		lg.Fatalw("object storage connect failed", "error", err)
	}
	publicURL := cfg.Storage.PublicURL
	if publicURL == "" {
		scheme := "http://"
		if cfg.Storage.UseSSL {
			scheme = "https://"
		}
		publicURL = scheme + cfg.Storage.Endpoint
	}
	imgs, err := images.NewStore(context.Background(), mc, cfg.Storage.Bucket, publicURL, lg)
	if err != nil {
		lg.Fatalw("image store init failed", "error", err)
	}

	svc := catalog.NewService(db, imgs, lg)
	ml := mailer.NewLogMailer(lg)

	router := httpserver.NewRouter(db, svc, ml, cfg.ChatDelay, lg)
	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		log.Fatal(err)
	}
}

func seedDefaultAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	var count int64
	db.Model(&models.Profile{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, _ := auth.HashPassword("admin1234")
	p := models.Profile{
		Email:         strings.ToLower("admin@aimarket.local"),
		PasswordHash:  hash,
		DisplayName:   "Administrator",
		Role:          models.RoleAdmin,
		EmailVerified: true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(&p).Error; err != nil {
		lg.Warnw("seed admin failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", p.Email)
}
