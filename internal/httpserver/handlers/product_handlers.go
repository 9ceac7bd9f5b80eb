package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aimarket/internal/auth"
	"aimarket/internal/models"
	"aimarket/internal/services/catalog"
	"aimarket/internal/services/images"
)

// ListMarketplace serves the public catalog. ?q= switches to substring
// search, otherwise ?category= narrows the active listing.
func ListMarketplace(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "" {
			respondJSON(w, svc.Search(r.Context(), q))
			return
		}
		respondJSON(w, svc.ListActive(r.Context(), r.URL.Query().Get("category")))
	}
}

func GetProduct(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err, "load product")
			return
		}
		respondJSON(w, p)
	}
}

// ProductImage returns a derived URL for the listing's cover image, sized per
// the query parameters.
func ProductImage(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err, "load product")
			return
		}
		if len(p.Images) == 0 {
			http.Error(w, "no images", http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		opts := images.TransformOpts{
			Crop:   q.Get("crop"),
			Format: q.Get("fm"),
		}
		opts.Width, _ = strconv.Atoi(q.Get("w"))
		opts.Height, _ = strconv.Atoi(q.Get("h"))
		opts.Quality, _ = strconv.Atoi(q.Get("q"))
		respondJSON(w, map[string]any{"url": images.TransformURL(p.Images[0], opts)})
	}
}

func MyProducts(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, svc.ListByOwner(r.Context(), auth.Subject(r.Context())))
	}
}

func CreateProduct(svc *catalog.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, files, cleanup, err := parseProductForm(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer cleanup()
		if msg := validateCreate(in); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		if in.APIKey == "" {
			in.APIKey = "mk_" + uuid.NewString()
		}
		var owner models.Profile
		if err := db.First(&owner, "id = ?", auth.Subject(r.Context())).Error; err != nil {
			http.Error(w, "profile not found", http.StatusUnauthorized)
			return
		}
		id, err := svc.Create(r.Context(), owner, in, files)
		if err != nil {
			lg.Errorw("create product failed", "owner", owner.ID, "error", err)
			respondError(w, err, "create product")
			return
		}
		_ = db.Create(&models.AuditLog{
			UserID: &owner.ID, Action: "PRODUCT_CREATE",
			Metadata: models.JSONB([]byte(`{"product_id":"` + id + `"}`)),
		}).Error
		respondStatus(w, http.StatusCreated, map[string]any{"id": id})
	}
}

func UpdateProduct(svc *catalog.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !ownsProduct(svc, r, id, w) {
			return
		}
		in, files, cleanup, err := parseProductPatch(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer cleanup()
		if err := svc.Update(r.Context(), id, in, files); err != nil {
			respondError(w, err, "update product")
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

func DeleteProduct(svc *catalog.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !ownsProduct(svc, r, id, w) {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			respondError(w, err, "delete product")
			return
		}
		sub := auth.Subject(r.Context())
		_ = db.Create(&models.AuditLog{
			UserID: &sub, Action: "PRODUCT_DELETE",
			Metadata: models.JSONB([]byte(`{"product_id":"` + id + `"}`)),
		}).Error
		respondJSON(w, map[string]any{"deleted": true})
	}
}

func SetStock(svc *catalog.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !ownsProduct(svc, r, id, w) {
			return
		}
		var req struct {
			Stock int64 `json:"stock"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stock < 0 {
			http.Error(w, "stock must be >= 0", http.StatusBadRequest)
			return
		}
		if err := svc.SetStock(r.Context(), id, req.Stock); err != nil {
			respondError(w, err, "set stock")
			return
		}
		sub := auth.Subject(r.Context())
		_ = db.Create(&models.AuditLog{
			UserID: &sub, Action: "STOCK_SET",
			Metadata: models.JSONB([]byte(`{"product_id":"` + id + `","stock":` + strconv.FormatInt(req.Stock, 10) + `}`)),
		}).Error
		respondJSON(w, map[string]any{"updated": true})
	}
}

// ownsProduct verifies the caller owns the listing (admins pass). Writes the
// error response itself and reports whether the handler may continue.
func ownsProduct(svc *catalog.Service, r *http.Request, id string, w http.ResponseWriter) bool {
	p, err := svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, err, "load product")
		return false
	}
	claims := auth.FromContext(r.Context())
	if p.OwnerID != claims.Subject && claims.Role != models.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// validateCreate mirrors the publish-form checks. They run only on create;
// updates deliberately skip them.
func validateCreate(in catalog.CreateInput) string {
	if strings.TrimSpace(in.Name) == "" {
		return "name required"
	}
	if in.PricePer1K <= 0 {
		return "price must be greater than 0"
	}
	if in.UsageLimit < 0 || in.TokenCount < 0 {
		return "limit and tokens must be >= 0"
	}
	if !models.ValidCategory(in.Category) {
		return "unknown category"
	}
	if in.Status != "" && !validStatus(in.Status) {
		return "unknown status"
	}
	return ""
}

func validStatus(s string) bool {
	switch s {
	case models.StatusActive, models.StatusInactive, models.StatusMaintenance,
		models.StatusDeprecated, models.StatusOutOfStock:
		return true
	}
	return false
}
