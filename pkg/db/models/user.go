package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/pkg/enums"
)

// User is the authenticated account behind both customers and vendors.
// Vendor accounts link to exactly one Vendor row via VendorID.
type User struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Name         string     `gorm:"column:name;not null"`
	Role         enums.Role `gorm:"column:role;type:text;not null"`
	VendorID     *uuid.UUID `gorm:"column:vendor_id;type:uuid"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
