package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ABTestMetricModel merepresentasikan tabel ab_test_metrics. Append-only.
// test_id & group_id sengaja didenormalisasi dari assignment saat tulis,
// supaya agregasi tidak perlu join lewat ab_test_assignments.
type ABTestMetricModel struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_ab_test_metrics_user_test_time" json:"user_id"`
	TestID  uuid.UUID `gorm:"column:test_id;type:uuid;not null;index:idx_ab_test_metrics_user_test_time" json:"test_id"`
	GroupID uuid.UUID `gorm:"column:group_id;type:uuid;not null" json:"group_id"`

	MetricName  string  `gorm:"column:metric_name;size:100;not null" json:"metric_name"`
	MetricValue *string `gorm:"column:metric_value;type:text" json:"metric_value,omitempty"`

	RecordedAt time.Time `gorm:"column:recorded_at;autoCreateTime;index:idx_ab_test_metrics_user_test_time" json:"recorded_at"`

	Test  *ABTestModel      `gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE" json:"test,omitempty"`
	Group *ABTestGroupModel `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
}

func (ABTestMetricModel) TableName() string {
	return "ab_test_metrics"
}

func (m *ABTestMetricModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
