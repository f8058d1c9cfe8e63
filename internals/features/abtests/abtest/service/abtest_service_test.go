package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"abtestku_backend/internals/configs"
	"abtestku_backend/internals/features/abtests/abtest/dto"
	"abtestku_backend/internals/features/abtests/abtest/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	// in-memory sqlite: satu koneksi, kalau tidak tiap koneksi dapat DB kosong
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.ABTestModel{},
		&model.ABTestGroupModel{},
		&model.ABTestAssignmentModel{},
		&model.ABTestMetricModel{},
	))
	return db
}

func seedTest(t *testing.T, db *gorm.DB, name string, active bool, groupNames ...string) *model.ABTestModel {
	t.Helper()

	test := model.ABTestModel{Name: name, Active: active}
	require.NoError(t, db.Create(&test).Error)

	for _, gn := range groupNames {
		group := model.ABTestGroupModel{TestID: test.ID, GroupName: gn}
		require.NoError(t, db.Create(&group).Error)
		test.Groups = append(test.Groups, group)
	}
	return &test
}

func requireFiberStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	fe, ok := err.(*fiber.Error)
	require.True(t, ok, "expected *fiber.Error, got %T: %v", err, err)
	assert.Equal(t, status, fe.Code)
}

/* ==========================
   Provisioner
========================== */

func TestEnsureDefaultTest_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, EnsureDefaultTest(ctx, db))
	}

	var tests []model.ABTestModel
	require.NoError(t, db.Where("name = ?", configs.ABTestDefault.TestName).Find(&tests).Error)
	require.Len(t, tests, 1)
	assert.True(t, tests[0].Active)

	var groups []model.ABTestGroupModel
	require.NoError(t, db.Where("test_id = ?", tests[0].ID).Find(&groups).Error)
	require.Len(t, groups, len(configs.ABTestDefault.Groups))

	names := make(map[string]bool, len(groups))
	for _, g := range groups {
		names[g.GroupName] = true
	}
	for _, gc := range configs.ABTestDefault.Groups {
		assert.True(t, names[gc.Name], "group %q harus ada", gc.Name)
	}
}

func TestEnsureDefaultTest_ReactivatesInactive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureDefaultTest(ctx, db))
	require.NoError(t, db.Model(&model.ABTestModel{}).
		Where("name = ?", configs.ABTestDefault.TestName).
		Update("active", false).Error)

	require.NoError(t, EnsureDefaultTest(ctx, db))

	var test model.ABTestModel
	require.NoError(t, db.Where("name = ?", configs.ABTestDefault.TestName).First(&test).Error)
	assert.True(t, test.Active, "test nonaktif harus diaktifkan lagi, bukan dibuat kembar")

	var count int64
	require.NoError(t, db.Model(&model.ABTestModel{}).
		Where("name = ?", configs.ABTestDefault.TestName).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureDefaultTest_FillsMissingGroup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureDefaultTest(ctx, db))

	var test model.ABTestModel
	require.NoError(t, db.Where("name = ?", configs.ABTestDefault.TestName).First(&test).Error)
	require.NoError(t, db.Where("test_id = ? AND group_name = ?", test.ID, "variant_b").
		Delete(&model.ABTestGroupModel{}).Error)

	require.NoError(t, EnsureDefaultTest(ctx, db))

	var count int64
	require.NoError(t, db.Model(&model.ABTestGroupModel{}).
		Where("test_id = ?", test.ID).Count(&count).Error)
	assert.EqualValues(t, len(configs.ABTestDefault.Groups), count)
}

/* ==========================
   Assignment engine
========================== */

func TestAssignUserToTest_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTest(t, db, "t1", true, "a", "b")
	userID := uuid.New()

	first, err := AssignUserToTest(ctx, db, userID, "t1")
	require.NoError(t, err)
	require.NotNil(t, first.Group)
	assert.Contains(t, []string{"a", "b"}, first.Group.GroupName)

	second, err := AssignUserToTest(ctx, db, userID, "t1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.GroupID, second.GroupID)

	var count int64
	require.NoError(t, db.Model(&model.ABTestAssignmentModel{}).
		Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAssignUserToTest_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := AssignUserToTest(context.Background(), db, uuid.New(), "missing_test")
	requireFiberStatus(t, err, fiber.StatusNotFound)
}

func TestAssignUserToTest_InactiveTest(t *testing.T) {
	db := setupTestDB(t)
	seedTest(t, db, "t_off", false, "a", "b")

	_, err := AssignUserToTest(context.Background(), db, uuid.New(), "t_off")
	requireFiberStatus(t, err, fiber.StatusNotFound)
}

func TestAssignUserToTest_NoGroups(t *testing.T) {
	db := setupTestDB(t)
	seedTest(t, db, "t2", true)

	_, err := AssignUserToTest(context.Background(), db, uuid.New(), "t2")
	requireFiberStatus(t, err, fiber.StatusBadRequest)
}

func TestAssignUserToTest_DefaultTestSelfProvisions(t *testing.T) {
	db := setupTestDB(t)

	// DB kosong, nama default → provisioning jalan dulu, baru assign
	assignment, err := AssignUserToTest(context.Background(), db, uuid.New(), configs.ABTestDefault.TestName)
	require.NoError(t, err)
	require.NotNil(t, assignment.Group)
	assert.Contains(t, []string{"variant_a", "variant_b"}, assignment.Group.GroupName)
}

func TestAssignToRandomGroup_RaceLoserReturnsWinner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	test := seedTest(t, db, "t_race", true, "a", "b")
	userID := uuid.New()

	// simulasi caller lain menang duluan: row sudah ada sebelum insert kita
	winner := model.ABTestAssignmentModel{
		UserID:  userID,
		TestID:  test.ID,
		GroupID: test.Groups[0].ID,
	}
	require.NoError(t, db.Create(&winner).Error)

	got, err := assignToRandomGroup(ctx, db, test, userID)
	require.NoError(t, err, "duplicate key harus diselesaikan jadi re-read, bukan error")
	assert.Equal(t, winner.ID, got.ID)
	assert.Equal(t, winner.GroupID, got.GroupID)

	var count int64
	require.NoError(t, db.Model(&model.ABTestAssignmentModel{}).
		Where("user_id = ? AND test_id = ?", userID, test.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "unique (user_id, test_id) harus menahan row kembar")
}

func TestAssignUserToTest_RoughlyUniform(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTest(t, db, "t_dist", true, "a", "b")

	counts := map[string]int{}
	const n = 300
	for i := 0; i < n; i++ {
		a, err := AssignUserToTest(ctx, db, uuid.New(), "t_dist")
		require.NoError(t, err)
		require.NotNil(t, a.Group)
		counts[a.Group.GroupName]++
	}

	assert.Equal(t, n, counts["a"]+counts["b"])
	// 50/50 dengan toleransi sangat longgar; yang dicek cuma "dua-duanya kepakai"
	assert.Greater(t, counts["a"], n/6)
	assert.Greater(t, counts["b"], n/6)
}

func TestGetUserTestAssignment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTest(t, db, "t3", true, "a", "b")
	userID := uuid.New()

	_, err := GetUserTestAssignment(ctx, db, userID, "t3")
	requireFiberStatus(t, err, fiber.StatusNotFound)

	assigned, err := AssignUserToTest(ctx, db, userID, "t3")
	require.NoError(t, err)

	// test dimatikan; user lama tetap bisa query assignment-nya
	require.NoError(t, db.Model(&model.ABTestModel{}).
		Where("name = ?", "t3").Update("active", false).Error)

	got, err := GetUserTestAssignment(ctx, db, userID, "t3")
	require.NoError(t, err)
	assert.Equal(t, assigned.ID, got.ID)

	_, err = GetUserTestAssignment(ctx, db, userID, "missing_test")
	requireFiberStatus(t, err, fiber.StatusNotFound)
}

/* ==========================
   Metric recorder
========================== */

func TestRecordMetric_AutoAssigns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTest(t, db, "t4", true, "a", "b")
	userID := uuid.New()

	value := "42"
	metric, err := RecordMetric(ctx, db, userID, "t4", &dto.CreateMetricRequest{
		MetricName:  "click",
		MetricValue: &value,
	})
	require.NoError(t, err)
	assert.Equal(t, "click", metric.MetricName)
	require.NotNil(t, metric.MetricValue)
	assert.Equal(t, "42", *metric.MetricValue)

	// efek samping: assignment ikut dibuat
	var assignments []model.ABTestAssignmentModel
	require.NoError(t, db.Where("user_id = ?", userID).Find(&assignments).Error)
	require.Len(t, assignments, 1)
	assert.Equal(t, assignments[0].TestID, metric.TestID)
	assert.Equal(t, assignments[0].GroupID, metric.GroupID)
}

func TestRecordMetric_UsesExistingAssignment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTest(t, db, "t5", true, "a", "b")
	userID := uuid.New()

	assignment, err := AssignUserToTest(ctx, db, userID, "t5")
	require.NoError(t, err)

	metric, err := RecordMetric(ctx, db, userID, "t5", &dto.CreateMetricRequest{MetricName: "view"})
	require.NoError(t, err)
	assert.Equal(t, assignment.GroupID, metric.GroupID)
	assert.Nil(t, metric.MetricValue)

	var count int64
	require.NoError(t, db.Model(&model.ABTestAssignmentModel{}).
		Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRecordMetric_TestAbsent(t *testing.T) {
	db := setupTestDB(t)
	_, err := RecordMetric(context.Background(), db, uuid.New(), "missing_test",
		&dto.CreateMetricRequest{MetricName: "click"})
	requireFiberStatus(t, err, fiber.StatusNotFound)
}

func TestRecordMetric_DefaultTestSelfProvisions(t *testing.T) {
	db := setupTestDB(t)

	metric, err := RecordMetric(context.Background(), db, uuid.New(),
		configs.ABTestDefault.TestName, &dto.CreateMetricRequest{MetricName: "open"})
	require.NoError(t, err)
	assert.Equal(t, "open", metric.MetricName)
}

/* ==========================
   Aggregation reporter
========================== */

func TestGetTestMetrics_EmptyBucketsPerGroup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	test := seedTest(t, db, "t6", true, "a", "b")
	userID := uuid.New()

	// paksa user masuk group "a" supaya asersi deterministik
	require.NoError(t, db.Create(&model.ABTestAssignmentModel{
		UserID:  userID,
		TestID:  test.ID,
		GroupID: test.Groups[0].ID,
	}).Error)

	_, err := RecordMetric(ctx, db, userID, "t6", &dto.CreateMetricRequest{MetricName: "click"})
	require.NoError(t, err)

	report, err := GetTestMetrics(ctx, db, "t6")
	require.NoError(t, err)
	assert.Equal(t, "t6", report.TestName)
	assert.Equal(t, test.ID, report.TestID)

	require.Contains(t, report.Aggregated, "a")
	require.Contains(t, report.Aggregated, "b", "group tanpa metric tetap harus muncul")

	require.Len(t, report.Aggregated["a"]["click"], 1)
	assert.Nil(t, report.Aggregated["a"]["click"][0].Value)
	assert.Empty(t, report.Aggregated["b"], "bucket group b harus map kosong")
}

func TestGetTestMetrics_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := GetTestMetrics(context.Background(), db, "missing_test")
	requireFiberStatus(t, err, fiber.StatusNotFound)
}

func TestGetUserMetrics_OrderedNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	test := seedTest(t, db, "t7", true, "a")
	userID := uuid.New()

	assignment, err := AssignUserToTest(ctx, db, userID, "t7")
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, db.Create(&model.ABTestMetricModel{
			UserID:     userID,
			TestID:     test.ID,
			GroupID:    assignment.GroupID,
			MetricName: name,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	metrics, err := GetUserMetrics(ctx, db, userID, "t7")
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, "third", metrics[0].MetricName)
	assert.Equal(t, "second", metrics[1].MetricName)
	assert.Equal(t, "first", metrics[2].MetricName)
}

func TestGetUserMetrics_EmptyWithoutAssignment(t *testing.T) {
	db := setupTestDB(t)
	seedTest(t, db, "t8", true, "a")

	metrics, err := GetUserMetrics(context.Background(), db, uuid.New(), "t8")
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestGetUserMetrics_TestAbsent(t *testing.T) {
	db := setupTestDB(t)
	_, err := GetUserMetrics(context.Background(), db, uuid.New(), "missing_test")
	requireFiberStatus(t, err, fiber.StatusNotFound)
}
