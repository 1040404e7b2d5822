package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

// Profile is the marketplace identity behind buyer and seller references.
// Rows are maintained by the account service; this service only reads them.
type Profile struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserType  enums.UserType `gorm:"column:user_type;type:varchar(20);not null" json:"user_type"`
	FirstName string         `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName  string         `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	Email     string         `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Location  *string        `gorm:"column:location;type:varchar(200)" json:"location,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
