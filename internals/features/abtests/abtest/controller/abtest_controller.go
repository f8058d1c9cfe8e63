package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"abtestku_backend/internals/features/abtests/abtest/dto"
	"abtestku_backend/internals/features/abtests/abtest/service"
	helpers "abtestku_backend/internals/helpers"
)

type AbTestController struct {
	DB *gorm.DB
}

func NewAbTestController(db *gorm.DB) *AbTestController {
	return &AbTestController{DB: db}
}

func testNameParam(c *fiber.Ctx) (string, error) {
	name := strings.TrimSpace(c.Params("test_name"))
	if name == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "test_name wajib diisi")
	}
	return name, nil
}

// POST /api/abtest/assign/:test_name
// Assign user ke salah satu variant. Kalau sudah ter-assign, balikan yang ada.
func (ctl *AbTestController) AssignTest(c *fiber.Ctx) error {
	userID, err := helpers.GetUserIDFromToken(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	testName, err := testNameParam(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}

	assignment, err := service.AssignUserToTest(c.UserContext(), ctl.DB, userID, testName)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	return helpers.JsonOK(c, "Assignment berhasil", dto.NewAssignmentResponse(assignment))
}

// GET /api/abtest/group/:test_name
func (ctl *AbTestController) GetTestGroup(c *fiber.Ctx) error {
	userID, err := helpers.GetUserIDFromToken(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	testName, err := testNameParam(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}

	assignment, err := service.GetUserTestAssignment(c.UserContext(), ctl.DB, userID, testName)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	return helpers.JsonOK(c, "Assignment ditemukan", dto.NewAssignmentResponse(assignment))
}

// POST /api/abtest/metrics/:test_name
func (ctl *AbTestController) RecordMetric(c *fiber.Ctx) error {
	userID, err := helpers.GetUserIDFromToken(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	testName, err := testNameParam(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}

	var req dto.CreateMetricRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := helpers.Validate.Struct(&req); err != nil {
		return helpers.ValidationError(c, err)
	}

	metric, err := service.RecordMetric(c.UserContext(), ctl.DB, userID, testName, &req)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	return helpers.JsonCreated(c, "Metric tersimpan", dto.NewMetricResponse(metric))
}

// GET /api/abtest/metrics/:test_name
func (ctl *AbTestController) GetUserMetrics(c *fiber.Ctx) error {
	userID, err := helpers.GetUserIDFromToken(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	testName, err := testNameParam(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}

	metrics, err := service.GetUserMetrics(c.UserContext(), ctl.DB, userID, testName)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	return helpers.JsonList(c, "Metrics ditemukan", dto.NewMetricResponses(metrics))
}

// GET /api/abtest/results/:test_name
func (ctl *AbTestController) GetTestResults(c *fiber.Ctx) error {
	testName, err := testNameParam(c)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}

	report, err := service.GetTestMetrics(c.UserContext(), ctl.DB, testName)
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	return helpers.JsonOK(c, "Report agregasi", report)
}
