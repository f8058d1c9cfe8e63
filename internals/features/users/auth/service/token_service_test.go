package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authModel "abtestku_backend/internals/features/users/auth/model"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&authModel.RefreshTokenModel{}))
	return db
}

// Dua refresh token yang diterbitkan untuk user yang sama pada detik yang
// sama harus tetap beda byte (jti), supaya hash di refresh_tokens tidak
// pernah tabrakan dan revoke satu token tidak ikut mematikan token lain.
func TestBuildRefreshClaims_UniquePerIssue(t *testing.T) {
	userID := uuid.New()
	now := time.Now().UTC()

	sign := func() string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, buildRefreshClaims(userID, now)).
			SignedString([]byte("refresh-secret"))
		require.NoError(t, err)
		return token
	}

	first, second := sign(), sign()
	assert.NotEqual(t, first, second)
	assert.NotEqual(t,
		computeRefreshHash(first, "refresh-secret"),
		computeRefreshHash(second, "refresh-secret"))
}

// Rotasi revoke per-hash: kalau ada lebih dari satu row aktif dengan hash
// yang sama, semuanya harus mati dalam satu langkah.
func TestRevokeRefreshTokenByHash_RevokesAllMatchingRows(t *testing.T) {
	db := setupServiceDB(t)
	userID := uuid.New()
	hash := computeRefreshHash("token-lama", "refresh-secret")

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&authModel.RefreshTokenModel{
			UserID:    userID,
			TokenHash: hash,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}).Error)
	}

	_, err := findRefreshTokenByHashActive(db, hash)
	require.NoError(t, err)

	require.NoError(t, revokeRefreshTokenByHash(db, hash))

	_, err = findRefreshTokenByHashActive(db, hash)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var active int64
	require.NoError(t, db.Model(&authModel.RefreshTokenModel{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Count(&active).Error)
	assert.Zero(t, active)
}
