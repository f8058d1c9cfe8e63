package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ABTestModel merepresentasikan tabel ab_tests.
// Name unik global — jadi lookup key sekaligus penjaga race provisioning:
// dua proses yang sama-sama create test default, salah satunya kena
// duplicate key dan tinggal re-read.
type ABTestModel struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:100;not null;uniqueIndex:uq_ab_tests_name" json:"name"`
	Description *string   `gorm:"column:description;type:text" json:"description,omitempty"`
	Active      bool      `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Test memiliki groups; hapus test ikut menghapus groups-nya.
	Groups []ABTestGroupModel `gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE" json:"groups,omitempty"`
}

func (ABTestModel) TableName() string {
	return "ab_tests"
}

func (m *ABTestModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
