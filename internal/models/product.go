package models

import "time"

const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
	StatusDeprecated  = "deprecated"
	StatusOutOfStock  = "out_of_stock"
)

var Categories = []string{"chatbot", "vision", "speech", "text", "code", "agent", "other"}

func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Product is a published AI model/agent listing. OwnerName and OwnerAvatar
// are copied from the owner's profile at creation time and are not re-synced
// when the profile changes.
type Product struct {
	ID            string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string     `gorm:"not null;index" json:"name"`
	Description   string     `json:"description"`
	APIName       string     `json:"api_name"`
	PricePer1K    float64    `gorm:"column:price_per_1k" json:"price_per_1k"`
	Category      string     `gorm:"index" json:"category"`
	Tags          StringList `gorm:"type:jsonb;default:'[]'::jsonb" json:"tags"`
	UsageLimit    int64      `json:"usage_limit"`
	TokenCount    int64      `json:"token_count"`
	APIDocs       string     `json:"api_docs"`
	APIKey        string     `json:"api_key"`
	AllowedOrigin string     `json:"allowed_origin"`
	Status        string     `gorm:"not null;default:active;index" json:"status"`
	Images        StringList `gorm:"type:jsonb;default:'[]'::jsonb" json:"images"`
	OwnerID       string     `gorm:"type:uuid;index;not null" json:"owner_id"`
	OwnerName     string     `json:"owner_name"`
	OwnerAvatar   string     `json:"owner_avatar"`
	Stock         *int64     `json:"stock,omitempty"` // nil means unlimited
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Product) TableName() string { return "products" }
