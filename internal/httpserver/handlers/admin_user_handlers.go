package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aimarket/internal/auth"
	"aimarket/internal/models"
)

func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ps []models.Profile
		if err := db.Order("created_at desc").Find(&ps).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, ps)
	}
}

// PromoteByEmail looks a profile up by email and patches its role to admin.
// Route guards enforce who may call this; the operation itself does not.
func PromoteByEmail(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))
		var p models.Profile
		if err := db.First(&p, "email = ?", email).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondError(w, models.ErrNotFound, "promote user")
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := db.Model(&p).Updates(map[string]any{
			"role": models.RoleAdmin, "updated_at": time.Now(),
		}).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		actor := auth.Subject(r.Context())
		_ = db.Create(&models.AuditLog{
			UserID: &actor, Action: "ROLE_PROMOTE",
			Metadata: models.JSONB([]byte(`{"target":"` + p.ID + `"}`)),
		}).Error
		respondJSON(w, map[string]any{"id": p.ID, "role": models.RoleAdmin})
	}
}

// SetRole patches the role field unconditionally.
func SetRole(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !models.ValidRole(req.Role) {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		if err := db.Model(&models.Profile{}).Where("id = ?", id).Updates(map[string]any{
			"role": req.Role, "updated_at": time.Now(),
		}).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		actor := auth.Subject(r.Context())
		_ = db.Create(&models.AuditLog{
			UserID: &actor, Action: "ROLE_SET",
			Metadata: models.JSONB([]byte(`{"target":"` + id + `","role":"` + req.Role + `"}`)),
		}).Error
		respondJSON(w, map[string]any{"updated": true})
	}
}
