package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aimarket/internal/models"
	"aimarket/internal/services/images"
)

// ImageStore is the slice of the image service the catalog needs.
type ImageStore interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64) (images.Object, error)
	Delete(ctx context.Context, key string) error
}

// Service owns the product listing lifecycle. Write failures surface as
// models.ErrPersistence; list failures are logged and swallowed into empty
// results so listing views stay up during transient store outages.
type Service struct {
	db     *gorm.DB
	images ImageStore
	lg     *zap.SugaredLogger
}

func NewService(db *gorm.DB, imgs ImageStore, lg *zap.SugaredLogger) *Service {
	return &Service{db: db, images: imgs, lg: lg}
}

// UploadFile is one image file attached to a create/update request.
type UploadFile struct {
	Name   string
	Reader io.Reader
	Size   int64
}

// CreateInput carries the fields a store owner supplies when publishing.
type CreateInput struct {
	Name          string
	Description   string
	APIName       string
	PricePer1K    float64
	Category      string
	Tags          []string
	UsageLimit    int64
	TokenCount    int64
	APIDocs       string
	APIKey        string
	AllowedOrigin string
	Status        string
	Stock         *int64
}

// Create uploads any images first, then writes the listing row. A failed
// upload aborts the create; a failed row write leaves already-uploaded
// objects orphaned, there is no compensating rollback.
func (s *Service) Create(ctx context.Context, owner models.Profile, in CreateInput, files []UploadFile) (string, error) {
	urls, err := s.uploadAll(ctx, files)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	status := in.Status
	if status == "" {
		status = models.StatusActive
	}
	now := time.Now()
	p := models.Product{
		Name:          in.Name,
		Description:   in.Description,
		APIName:       in.APIName,
		PricePer1K:    in.PricePer1K,
		Category:      in.Category,
		Tags:          models.StringList(in.Tags),
		UsageLimit:    in.UsageLimit,
		TokenCount:    in.TokenCount,
		APIDocs:       in.APIDocs,
		APIKey:        in.APIKey,
		AllowedOrigin: in.AllowedOrigin,
		Status:        status,
		Images:        models.StringList(urls),
		OwnerID:       owner.ID,
		OwnerName:     owner.DisplayName,
		OwnerAvatar:   owner.AvatarURL,
		Stock:         in.Stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		s.lg.Errorw("create product failed", "error", err, "orphaned_images", len(urls))
		return "", fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return p.ID, nil
}

// ListByOwner queries on the owner field only and sorts in memory, so the
// store never needs a composite owner+updated_at index.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) []models.Product {
	var ps []models.Product
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&ps).Error; err != nil {
		s.lg.Errorw("list by owner failed", "owner_id", ownerID, "error", err)
		return []models.Product{}
	}
	sortByUpdatedDesc(ps)
	return ps
}

// ListActive returns active listings, optionally narrowed to one category.
// Rows whose stock is known and non-positive are dropped; nil stock means
// unlimited and is always kept.
func (s *Service) ListActive(ctx context.Context, category string) []models.Product {
	q := s.db.WithContext(ctx).Where("status = ?", models.StatusActive)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var ps []models.Product
	if err := q.Find(&ps).Error; err != nil {
		s.lg.Errorw("list active failed", "category", category, "error", err)
		return []models.Product{}
	}
	ps = filterInStock(ps)
	sortByUpdatedDesc(ps)
	return ps
}

func (s *Service) Get(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Product{}, fmt.Errorf("%w: product %s", models.ErrNotFound, id)
		}
		return models.Product{}, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return p, nil
}

// UpdateInput patches only the non-nil fields. No invariant re-validation
// happens here; price can legally become 0 through this path.
type UpdateInput struct {
	Name          *string
	Description   *string
	APIName       *string
	PricePer1K    *float64
	Category      *string
	Tags          *[]string
	UsageLimit    *int64
	TokenCount    *int64
	APIDocs       *string
	APIKey        *string
	AllowedOrigin *string
	Status        *string
	Stock         *int64
}

// Update patches the supplied fields plus the update timestamp. If new image
// files are supplied, the uploaded URLs replace the entire existing image
// list; there is no merge.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, files []UploadFile) error {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %s", models.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	updates := map[string]any{"updated_at": time.Now()}
	if len(files) > 0 {
		urls, err := s.uploadAll(ctx, files)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		updates["images"] = models.StringList(urls)
	}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.APIName != nil {
		updates["api_name"] = *in.APIName
	}
	if in.PricePer1K != nil {
		updates["price_per_1k"] = *in.PricePer1K
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Tags != nil {
		updates["tags"] = models.StringList(*in.Tags)
	}
	if in.UsageLimit != nil {
		updates["usage_limit"] = *in.UsageLimit
	}
	if in.TokenCount != nil {
		updates["token_count"] = *in.TokenCount
	}
	if in.APIDocs != nil {
		updates["api_docs"] = *in.APIDocs
	}
	if in.APIKey != nil {
		updates["api_key"] = *in.APIKey
	}
	if in.AllowedOrigin != nil {
		updates["allowed_origin"] = *in.AllowedOrigin
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.Stock != nil {
		updates["stock"] = *in.Stock
	}
	if err := s.db.WithContext(ctx).Model(&p).Updates(updates).Error; err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

// Delete removes the listing row. Image cleanup is a stub that only records
// intent; the two steps share no transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err == nil {
		for _, u := range p.Images {
			_ = s.images.Delete(ctx, u)
		}
	}
	if err := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

// SetStock is the only path that keeps status and stock coupled: exactly zero
// flips the listing to out_of_stock, anything else back to active. Generic
// Update calls can still desynchronize the pair.
func (s *Service) SetStock(ctx context.Context, id string, stock int64) error {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %s", models.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	updates := map[string]any{
		"stock":      stock,
		"status":     statusForStock(stock),
		"updated_at": time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&p).Updates(updates).Error; err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

// Search loads all active listings and substring-matches in memory. Fine for
// a demo catalog, documented as a scaling limit.
func (s *Service) Search(ctx context.Context, term string) []models.Product {
	all := s.ListActive(ctx, "")
	out := make([]models.Product, 0, len(all))
	for _, p := range all {
		if matchesTerm(p, term) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) uploadAll(ctx context.Context, files []UploadFile) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		obj, err := s.images.Upload(ctx, f.Name, f.Reader, f.Size)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		urls = append(urls, obj.URL)
	}
	return urls, nil
}
