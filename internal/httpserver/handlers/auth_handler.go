package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aimarket/internal/auth"
	"aimarket/internal/models"
	"aimarket/internal/services/mailer"
)

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"` // optional; default customer
}

func Register(db *gorm.DB, ml mailer.Mailer, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			http.Error(w, "valid email required", http.StatusBadRequest)
			return
		}
		if len(req.Password) < 6 {
			http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = models.RoleCustomer
		}
		if !models.ValidRole(req.Role) {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			http.Error(w, "hash error", http.StatusInternalServerError)
			return
		}

		p := models.Profile{
			Email:        req.Email,
			PasswordHash: hash,
			DisplayName:  req.DisplayName,
			Role:         req.Role,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := db.Create(&p).Error; err != nil {
			lg.Warnw("register failed", "email", req.Email, "error", err)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				http.Error(w, "email already registered", http.StatusConflict)
				return
			}
			http.Error(w, "failed to register. Please try again", http.StatusInternalServerError)
			return
		}

		if err := sendVerification(r, db, ml, p); err != nil {
			lg.Errorw("send verification failed", "email", p.Email, "error", err)
		}
		_ = db.Create(&models.AuditLog{
			UserID: &p.ID, Action: "REGISTER",
			Metadata: models.JSONB([]byte(`{"role":"` + p.Role + `"}`)),
		}).Error

		respondJSON(w, map[string]any{"id": p.ID, "email": p.Email, "role": p.Role})
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var p models.Profile
		if err := db.First(&p, "email = ?", strings.ToLower(req.Email)).Error; err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err := auth.CheckPassword(p.PasswordHash, req.Password); err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := startSession(db, p)
		if err != nil {
			http.Error(w, "token error", http.StatusInternalServerError)
			return
		}
		_ = db.Create(&models.AuditLog{UserID: &p.ID, Action: "LOGIN"}).Error
		respondJSON(w, map[string]any{"token": tok, "role": p.Role})
	}
}

type federatedReq struct {
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Federated completes a third-party consent flow: the provider has already
// verified the identity, this endpoint ensures a profile exists. The
// read-then-create is not atomic; two concurrent first sign-ins can race, so
// a duplicate create falls back to a re-read.
func Federated(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req federatedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Subject == "" || req.Email == "" {
			http.Error(w, "subject and email required", http.StatusBadRequest)
			return
		}
		var p models.Profile
		err := db.First(&p, "email = ?", req.Email).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p = models.Profile{
				Email:         req.Email,
				DisplayName:   req.DisplayName,
				AvatarURL:     req.AvatarURL,
				Role:          models.RoleCustomer,
				EmailVerified: true,
				Federated:     true,
				CreatedAt:     time.Now(),
				UpdatedAt:     time.Now(),
			}
			if cerr := db.Create(&p).Error; cerr != nil {
				// lost the race against another tab; the row exists now
				if rerr := db.First(&p, "email = ?", req.Email).Error; rerr != nil {
					http.Error(w, "profile error", http.StatusInternalServerError)
					return
				}
			}
		} else if err != nil {
			http.Error(w, "profile error", http.StatusInternalServerError)
			return
		}
		tok, err := startSession(db, p)
		if err != nil {
			http.Error(w, "token error", http.StatusInternalServerError)
			return
		}
		_ = db.Create(&models.AuditLog{UserID: &p.ID, Action: "LOGIN_FEDERATED"}).Error
		respondJSON(w, map[string]any{"token": tok, "role": p.Role})
	}
}

func VerifyEmail(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var vt models.VerificationToken
		if err := db.First(&vt, "token = ?", req.Token).Error; err != nil {
			http.Error(w, "invalid token", http.StatusBadRequest)
			return
		}
		if time.Now().After(vt.ExpiresAt) {
			http.Error(w, "token expired", http.StatusBadRequest)
			return
		}
		if err := db.Model(&models.Profile{}).Where("id = ?", vt.UserID).
			Updates(map[string]any{"email_verified": true, "updated_at": time.Now()}).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = db.Delete(&models.VerificationToken{}, "token = ?", vt.Token).Error
		respondJSON(w, map[string]any{"verified": true})
	}
}

// ResendVerification is a silent no-op without a live session: the response
// is 200 either way so the endpoint leaks nothing about session state.
func ResendVerification(db *gorm.DB, ml mailer.Mailer, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := bearerClaims(r, db)
		if !ok {
			respondJSON(w, map[string]any{"sent": false})
			return
		}
		var p models.Profile
		if err := db.First(&p, "id = ?", claims.Subject).Error; err != nil {
			respondJSON(w, map[string]any{"sent": false})
			return
		}
		if err := sendVerification(r, db, ml, p); err != nil {
			lg.Errorw("resend verification failed", "email", p.Email, "error", err)
			respondJSON(w, map[string]any{"sent": false})
			return
		}
		respondJSON(w, map[string]any{"sent": true})
	}
}

func Logout(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jti := auth.FromContext(r.Context()).JWTID
		now := time.Now()
		if err := db.Model(&models.Session{}).Where("jti = ?", jti).
			Update("revoked_at", &now).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"ok": true})
	}
}

func startSession(db *gorm.DB, p models.Profile) (string, error) {
	jti := uuid.NewString()
	sess := models.Session{
		JTI:       jti,
		UserID:    p.ID,
		ExpiresAt: time.Now().Add(auth.TokenTTL()),
		CreatedAt: time.Now(),
	}
	if err := db.Create(&sess).Error; err != nil {
		return "", err
	}
	return auth.Sign(p.ID, p.Role, jti)
}

func sendVerification(r *http.Request, db *gorm.DB, ml mailer.Mailer, p models.Profile) error {
	vt := models.VerificationToken{
		Token:     uuid.NewString(),
		UserID:    p.ID,
		ExpiresAt: time.Now().Add(48 * time.Hour),
		CreatedAt: time.Now(),
	}
	if err := db.Create(&vt).Error; err != nil {
		return err
	}
	return ml.SendVerification(r.Context(), p.Email, vt.Token)
}

// bearerClaims parses and session-checks an optional bearer token without
// failing the request.
func bearerClaims(r *http.Request, db *gorm.DB) (auth.Claims, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return auth.Claims{}, false
	}
	claims, err := auth.Verify(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		return auth.Claims{}, false
	}
	var sess models.Session
	if claims.JWTID == "" || db.First(&sess, "jti = ?", claims.JWTID).Error != nil {
		return auth.Claims{}, false
	}
	if sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
		return auth.Claims{}, false
	}
	return claims, true
}
