package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ABTestGroupModel merepresentasikan tabel ab_test_groups (satu arm/variant).
// (test_id, group_name) unik supaya provisioning yang balapan tidak
// menghasilkan group kembar.
type ABTestGroupModel struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TestID      uuid.UUID `gorm:"column:test_id;type:uuid;not null;uniqueIndex:uq_ab_test_groups_test_name" json:"test_id"`
	GroupName   string    `gorm:"column:group_name;size:100;not null;uniqueIndex:uq_ab_test_groups_test_name" json:"group_name"`
	Description *string   `gorm:"column:description;type:text" json:"description,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ABTestGroupModel) TableName() string {
	return "ab_test_groups"
}

func (m *ABTestGroupModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
