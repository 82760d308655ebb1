package sqldoc

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RetroDocument holds one retro aggregate. The scalar columns mirror the
// document for listing and guarded updates.
type RetroDocument struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null;default:''" json:"name"`
	CreatorID uuid.UUID      `gorm:"type:uuid;index" json:"creator_id"`
	Version   int64          `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	Document  datatypes.JSON `gorm:"not null" json:"document"`
}

func (RetroDocument) TableName() string { return "retro_documents" }

type UserRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"not null;index" json:"username"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (UserRow) TableName() string { return "users" }

// Models lists every table the adapter owns, in migration order.
func Models() []any {
	return []any{&UserRow{}, &RetroDocument{}}
}
