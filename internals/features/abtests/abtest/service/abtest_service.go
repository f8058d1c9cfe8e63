package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"abtestku_backend/internals/configs"
	"abtestku_backend/internals/features/abtests/abtest/dto"
	"abtestku_backend/internals/features/abtests/abtest/model"
)

/* ==========================
   PROVISIONER (default test)
========================== */

// EnsureDefaultTest memastikan test default (configs.ABTestDefault) ada,
// aktif, dan punya semua group bawaannya. Idempotent: dipanggil berapa kali
// pun hasilnya konvergen ke 1 test aktif + group sesuai konfigurasi.
// Duplicate key saat create berarti kalah race dari proses lain — berarti
// sudah ter-provision, tinggal re-read / lanjut.
func EnsureDefaultTest(ctx context.Context, db *gorm.DB) error {
	cfg := configs.ABTestDefault

	test, found, err := findTestByName(ctx, db, cfg.TestName, false)
	if err != nil {
		return err
	}

	if !found {
		created := model.ABTestModel{
			Name:        cfg.TestName,
			Description: strptr(cfg.TestDescription),
			Active:      true,
		}
		if err := db.WithContext(ctx).Create(&created).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusInternalServerError, "Gagal membuat test default")
			}
			// kalah race provisioning; ambil punya pemenang
			test, found, err = findTestByName(ctx, db, cfg.TestName, false)
			if err != nil {
				return err
			}
			if !found {
				return fiber.NewError(fiber.StatusInternalServerError, "Test default hilang setelah race create")
			}
		} else {
			test = &created
		}
	}

	// Reaktivasi, jangan pernah bikin test kembar dengan nama sama.
	if !test.Active {
		if err := db.WithContext(ctx).Model(&model.ABTestModel{}).
			Where("id = ?", test.ID).
			Update("active", true).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Gagal mengaktifkan test default")
		}
	}

	var groups []model.ABTestGroupModel
	if err := db.WithContext(ctx).
		Where("test_id = ?", test.ID).
		Find(&groups).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Gagal mengambil group test default")
	}

	existing := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		existing[g.GroupName] = struct{}{}
	}

	for _, gc := range cfg.Groups {
		if _, ok := existing[gc.Name]; ok {
			continue
		}
		group := model.ABTestGroupModel{
			TestID:      test.ID,
			GroupName:   gc.Name,
			Description: strptr(gc.Description),
		}
		if err := db.WithContext(ctx).Create(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue // group sudah dibuat proses lain
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Gagal membuat group test default")
		}
	}

	return nil
}

/* ==========================
   ASSIGNMENT ENGINE
========================== */

// AssignUserToTest memberi user satu group untuk test tsb, lazily.
// Idempotent dari sisi caller: kalau sudah ter-assign, kembalikan yang ada.
// Pemilihan group uniform random (bukan hash user) — dua proses yang
// balapan diselesaikan oleh unique constraint (user_id, test_id).
func AssignUserToTest(ctx context.Context, db *gorm.DB, userID uuid.UUID, testName string) (*model.ABTestAssignmentModel, error) {
	if testName == configs.ABTestDefault.TestName {
		// self-healing untuk jalur umum
		if err := EnsureDefaultTest(ctx, db); err != nil {
			return nil, err
		}
	}

	var test model.ABTestModel
	err := db.WithContext(ctx).
		Preload("Groups").
		Where("name = ? AND active = ?", testName, true).
		First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound,
				fmt.Sprintf("Test %q not found or inactive", testName))
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Gagal mengambil data test")
	}

	if len(test.Groups) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("Test %q has no groups", testName))
	}

	if existing, found, err := findAssignment(ctx, db, userID, test.ID); err != nil {
		return nil, err
	} else if found {
		return existing, nil
	}

	return assignToRandomGroup(ctx, db, &test, userID)
}

// assignToRandomGroup memilih group uniform random lalu insert assignment.
// Duplicate key berarti caller lain menang duluan: ambil row pemenang,
// jangan lempar error ke caller.
func assignToRandomGroup(ctx context.Context, db *gorm.DB, test *model.ABTestModel, userID uuid.UUID) (*model.ABTestAssignmentModel, error) {
	group := test.Groups[rand.Intn(len(test.Groups))]

	assignment := model.ABTestAssignmentModel{
		UserID:  userID,
		TestID:  test.ID,
		GroupID: group.ID,
	}
	if err := db.WithContext(ctx).Create(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, found, ferr := findAssignment(ctx, db, userID, test.ID)
			if ferr != nil {
				return nil, ferr
			}
			if !found {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Assignment hilang setelah race create")
			}
			return winner, nil
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Gagal menyimpan assignment")
	}

	assignment.Test = test
	assignment.Group = &group
	return &assignment, nil
}

// GetUserTestAssignment mengambil assignment user untuk sebuah test.
// Test tidak harus aktif — user lama tetap boleh query setelah test dimatikan.
func GetUserTestAssignment(ctx context.Context, db *gorm.DB, userID uuid.UUID, testName string) (*model.ABTestAssignmentModel, error) {
	test, found, err := findTestByName(ctx, db, testName, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound,
			fmt.Sprintf("Test %q not found", testName))
	}

	assignment, found, err := findAssignment(ctx, db, userID, test.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound,
			fmt.Sprintf("User not assigned to test %q", testName))
	}
	return assignment, nil
}

/* ==========================
   METRIC RECORDER
========================== */

// RecordMetric menulis satu event metric untuk user. Kalau user belum punya
// assignment, di-assign dulu di sini (ikut metric = ikut test). Efek samping:
// pemanggil tidak boleh menganggap RecordMetric read-only terhadap assignment.
func RecordMetric(ctx context.Context, db *gorm.DB, userID uuid.UUID, testName string, req *dto.CreateMetricRequest) (*model.ABTestMetricModel, error) {
	if testName == configs.ABTestDefault.TestName {
		if err := EnsureDefaultTest(ctx, db); err != nil {
			return nil, err
		}
	}

	// Lookup dua langkah eksplisit: cek presence dulu, absen → auto-enroll.
	var assignment *model.ABTestAssignmentModel
	test, testFound, err := findTestByName(ctx, db, testName, false)
	if err != nil {
		return nil, err
	}
	if testFound {
		found := false
		assignment, found, err = findAssignment(ctx, db, userID, test.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			assignment, err = AssignUserToTest(ctx, db, userID, testName)
			if err != nil {
				return nil, err
			}
		}
	} else {
		// test benar-benar tidak ada → NotFound dari assignment engine
		assignment, err = AssignUserToTest(ctx, db, userID, testName)
		if err != nil {
			return nil, err
		}
	}

	// test_id & group_id dicopy dari assignment (denormalisasi disengaja)
	metric := model.ABTestMetricModel{
		UserID:      userID,
		TestID:      assignment.TestID,
		GroupID:     assignment.GroupID,
		MetricName:  req.MetricName,
		MetricValue: req.MetricValue,
	}
	if err := db.WithContext(ctx).Create(&metric).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Gagal menyimpan metric")
	}
	return &metric, nil
}

/* ==========================
   AGGREGATION REPORTER
========================== */

// GetUserMetrics mengembalikan semua metric user untuk sebuah test,
// terbaru dulu. List kosong kalau user belum pernah kirim metric.
func GetUserMetrics(ctx context.Context, db *gorm.DB, userID uuid.UUID, testName string) ([]model.ABTestMetricModel, error) {
	test, found, err := findTestByName(ctx, db, testName, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound,
			fmt.Sprintf("Test %q not found", testName))
	}

	var metrics []model.ABTestMetricModel
	if err := db.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, test.ID).
		Order("recorded_at DESC").
		Find(&metrics).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Gagal mengambil metrics")
	}
	return metrics, nil
}

// GetTestMetrics menyusun report mentah per group per metric name.
// Bukan ringkasan statistik — raw dump, analisa lanjutan urusan pemakai.
// Setiap group test selalu muncul di output, termasuk yang belum punya metric.
func GetTestMetrics(ctx context.Context, db *gorm.DB, testName string) (*dto.TestMetricsResponse, error) {
	var test model.ABTestModel
	err := db.WithContext(ctx).
		Preload("Groups").
		Where("name = ?", testName).
		First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound,
				fmt.Sprintf("Test %q not found", testName))
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Gagal mengambil data test")
	}

	var metrics []model.ABTestMetricModel
	if err := db.WithContext(ctx).
		Preload("Group").
		Where("test_id = ?", test.ID).
		Find(&metrics).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Gagal mengambil metrics")
	}

	aggregated := make(dto.AggregatedMetrics, len(test.Groups))
	for _, g := range test.Groups {
		aggregated[g.GroupName] = make(map[string][]dto.MetricPoint)
	}

	for i := range metrics {
		m := &metrics[i]
		if m.Group == nil {
			log.Printf("[ABTEST] metric %s tanpa group, dilewati dari agregasi", m.ID)
			continue
		}
		bucket := aggregated[m.Group.GroupName]
		if bucket == nil {
			bucket = make(map[string][]dto.MetricPoint)
			aggregated[m.Group.GroupName] = bucket
		}
		bucket[m.MetricName] = append(bucket[m.MetricName], dto.MetricPoint{
			Value:      m.MetricValue,
			RecordedAt: m.RecordedAt,
		})
	}

	return &dto.TestMetricsResponse{
		TestName:   test.Name,
		TestID:     test.ID,
		Aggregated: aggregated,
	}, nil
}

/* ==========================
   Mini-repo (internal lookups)
========================== */

// findTestByName: presence eksplisit (bool), bukan error-as-control-flow.
func findTestByName(ctx context.Context, db *gorm.DB, name string, activeOnly bool) (*model.ABTestModel, bool, error) {
	q := db.WithContext(ctx).Where("name = ?", name)
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var test model.ABTestModel
	if err := q.First(&test).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fiber.NewError(fiber.StatusInternalServerError, "Gagal mengambil data test")
	}
	return &test, true, nil
}

func findAssignment(ctx context.Context, db *gorm.DB, userID, testID uuid.UUID) (*model.ABTestAssignmentModel, bool, error) {
	var assignment model.ABTestAssignmentModel
	err := db.WithContext(ctx).
		Preload("Test").
		Preload("Group").
		Where("user_id = ? AND test_id = ?", userID, testID).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fiber.NewError(fiber.StatusInternalServerError, "Gagal mengambil assignment")
	}
	return &assignment, true, nil
}

func strptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
