package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aimarket/internal/auth"
	"aimarket/internal/models"
)

// cannedReply is the whole "AI": the chat surface is demo-only, there is no
// model inference behind it.
const cannedReply = "Thanks for trying the demo! This model is not connected " +
	"to a live inference backend yet. Subscribe to the listing to get API access."

// PostChat stores the customer's message, waits a canned delay, and answers
// with a hardcoded reply.
func PostChat(db *gorm.DB, delay time.Duration, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message   string  `json:"message"`
			ProductID *string `json:"product_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message required", http.StatusBadRequest)
			return
		}
		sub := auth.Subject(r.Context())
		in := models.ChatMessage{UserID: sub, ProductID: req.ProductID, Sender: "user", Content: req.Message, CreatedAt: time.Now()}
		if err := db.Create(&in).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}

		out := models.ChatMessage{UserID: sub, ProductID: req.ProductID, Sender: "assistant", Content: cannedReply, CreatedAt: time.Now()}
		if err := db.Create(&out).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"reply": out.Content, "id": out.ID})
	}
}

func ChatHistory(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.Subject(r.Context())
		var msgs []models.ChatMessage
		_ = db.Where("user_id = ?", sub).Order("created_at desc").Limit(50).Find(&msgs).Error
		respondJSON(w, msgs)
	}
}
