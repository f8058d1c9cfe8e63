package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ABTestAssignmentModel merepresentasikan tabel ab_test_assignments:
// binding durable satu user ke satu group dalam satu test.
// (user_id, test_id) unik — satu user maksimal satu group per test,
// dan constraint inilah satu-satunya mekanisme anti-race saat assign.
// Row tidak pernah di-update setelah dibuat (tidak ada jalur reassign).
type ABTestAssignmentModel struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_ab_test_assignments_user_test" json:"user_id"`
	TestID  uuid.UUID `gorm:"column:test_id;type:uuid;not null;uniqueIndex:uq_ab_test_assignments_user_test" json:"test_id"`
	GroupID uuid.UUID `gorm:"column:group_id;type:uuid;not null" json:"group_id"`

	AssignedAt time.Time `gorm:"column:assigned_at;autoCreateTime" json:"assigned_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Test  *ABTestModel      `gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE" json:"test,omitempty"`
	Group *ABTestGroupModel `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
}

func (ABTestAssignmentModel) TableName() string {
	return "ab_test_assignments"
}

func (m *ABTestAssignmentModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
