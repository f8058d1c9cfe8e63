package service

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	authModel "abtestku_backend/internals/features/users/auth/model"
	userModel "abtestku_backend/internals/features/users/user/model"
	helpers "abtestku_backend/internals/helpers"
)

/* ==========================
   REFRESH (rotation)
========================== */

func RefreshToken(db *gorm.DB, c *fiber.Ctx) error {
	// refresh token bisa dari cookie (web) atau body (mobile)
	refreshToken := strings.TrimSpace(c.Cookies("refresh_token"))
	if refreshToken == "" {
		var input struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&input); err == nil {
			refreshToken = strings.TrimSpace(input.RefreshToken)
		}
	}
	if refreshToken == "" {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Refresh token tidak ada")
	}

	refreshSecret, err := getRefreshSecret()
	if err != nil {
		return helpers.FromFiberError(c, err)
	}

	// Parse & validate refresh JWT
	tok, err := jwt.Parse(refreshToken, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(refreshSecret), nil
	})
	if err != nil || !tok.Valid {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Refresh token invalid")
	}
	claims, _ := tok.Claims.(jwt.MapClaims)
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Refresh token invalid")
	}

	// Pastikan hash refresh masih aktif di DB
	hash := computeRefreshHash(refreshToken, refreshSecret)
	if _, err := findRefreshTokenByHashActive(db, hash); err != nil {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Refresh token tidak dikenal")
	}

	var user userModel.UserModel
	if err := db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err != nil {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "User not found")
	}
	if !user.IsActive {
		return helpers.JsonError(c, fiber.StatusForbidden, "Akun dinonaktifkan")
	}

	// ROTATE: revoke token lama dulu, baru terbitkan pasangan baru.
	// Revoke by hash, bukan by ID: kalau karena suatu hal ada lebih dari satu
	// row dengan hash sama, semuanya mati sekaligus.
	if err := revokeRefreshTokenByHash(db, hash); err != nil {
		log.Printf("[refresh] revoke old token failed: %v", err)
	}

	return issueTokens(c, db, &user, fiber.StatusOK, "Token diperbarui")
}

/* ==========================
   Mini-repo (tanpa dependensi baru)
========================== */

// Cari refresh token yang aktif (belum di-revoke, belum expired)
func findRefreshTokenByHashActive(db *gorm.DB, hash []byte) (*authModel.RefreshTokenModel, error) {
	var rt authModel.RefreshTokenModel
	err := db.
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, nowUTC()).
		First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func revokeRefreshTokenByHash(db *gorm.DB, hash []byte) error {
	now := nowUTC()
	return db.
		Model(&authModel.RefreshTokenModel{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", &now).Error
}
