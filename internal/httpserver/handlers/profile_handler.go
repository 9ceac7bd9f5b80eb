package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aimarket/internal/auth"
	"aimarket/internal/models"
)

func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.Subject(r.Context())
		var p models.Profile
		if err := db.First(&p, "id = ?", sub).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		respondJSON(w, map[string]any{
			"id": p.ID, "email": p.Email, "display_name": p.DisplayName,
			"avatar_url": p.AvatarURL, "role": p.Role,
			"email_verified": p.EmailVerified,
			"capabilities":   auth.Capabilities(p.Role),
		})
	}
}

func UpdateMe(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DisplayName *string `json:"display_name"`
			AvatarURL   *string `json:"avatar_url"`
			Password    *string `json:"password,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sub := auth.Subject(r.Context())
		var p models.Profile
		if err := db.First(&p, "id = ?", sub).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if req.DisplayName != nil {
			p.DisplayName = *req.DisplayName
		}
		if req.AvatarURL != nil {
			p.AvatarURL = *req.AvatarURL
		}
		if req.Password != nil && *req.Password != "" {
			if len(*req.Password) < 6 {
				http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
				return
			}
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				http.Error(w, "hash error", http.StatusInternalServerError)
				return
			}
			p.PasswordHash = hash
		}
		p.UpdatedAt = time.Now()
		if err := db.Save(&p).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}
