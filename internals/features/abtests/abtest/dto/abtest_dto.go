package dto

import (
	"time"

	"github.com/google/uuid"

	"abtestku_backend/internals/features/abtests/abtest/model"
)

/* ==========================
   Requests
========================== */

type CreateMetricRequest struct {
	MetricName  string  `json:"metric_name" validate:"required,min=1,max=100"`
	MetricValue *string `json:"metric_value,omitempty" validate:"omitempty,max=255"`
}

/* ==========================
   Responses
========================== */

type AssignmentResponse struct {
	TestID     uuid.UUID `json:"test_id"`
	TestName   string    `json:"test_name"`
	GroupID    uuid.UUID `json:"group_id"`
	GroupName  string    `json:"group_name"`
	AssignedAt time.Time `json:"assigned_at"`
}

// NewAssignmentResponse mengharapkan relasi Test & Group sudah terisi.
func NewAssignmentResponse(a *model.ABTestAssignmentModel) AssignmentResponse {
	resp := AssignmentResponse{
		TestID:     a.TestID,
		GroupID:    a.GroupID,
		AssignedAt: a.AssignedAt,
	}
	if a.Test != nil {
		resp.TestName = a.Test.Name
	}
	if a.Group != nil {
		resp.GroupName = a.Group.GroupName
	}
	return resp
}

type MetricResponse struct {
	MetricID    uuid.UUID `json:"metric_id"`
	MetricName  string    `json:"metric_name"`
	MetricValue *string   `json:"metric_value,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

func NewMetricResponse(m *model.ABTestMetricModel) MetricResponse {
	return MetricResponse{
		MetricID:    m.ID,
		MetricName:  m.MetricName,
		MetricValue: m.MetricValue,
		RecordedAt:  m.RecordedAt,
	}
}

func NewMetricResponses(items []model.ABTestMetricModel) []MetricResponse {
	out := make([]MetricResponse, 0, len(items))
	for i := range items {
		out = append(out, NewMetricResponse(&items[i]))
	}
	return out
}

/* ==========================
   Aggregated report
========================== */

// MetricPoint: satu event mentah di report agregasi.
type MetricPoint struct {
	Value      *string   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AggregatedMetrics: group_name → metric_name → daftar event mentah.
// Group tanpa metric tetap muncul sebagai map kosong.
type AggregatedMetrics map[string]map[string][]MetricPoint

type TestMetricsResponse struct {
	TestName   string            `json:"test_name"`
	TestID     uuid.UUID         `json:"test_id"`
	Aggregated AggregatedMetrics `json:"aggregated"`
}
