package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"log"
	"strings"
	"time"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"abtestku_backend/internals/configs"
	authHelper "abtestku_backend/internals/features/users/auth/helper"
	authModel "abtestku_backend/internals/features/users/auth/model"
	userModel "abtestku_backend/internals/features/users/user/model"
	helpers "abtestku_backend/internals/helpers"
)

/* ==========================
   Const & small helpers
========================== */

const (
	accessTTLDefault  = 15 * time.Minute
	refreshTTLDefault = 7 * 24 * time.Hour
)

func nowUTC() time.Time { return time.Now().UTC() }

func getJWTSecret() (string, error) {
	secret := strings.TrimSpace(configs.JWTSecret)
	if secret == "" {
		return "", fiber.NewError(fiber.StatusInternalServerError, "JWT_SECRET belum diset")
	}
	return secret, nil
}

func getRefreshSecret() (string, error) {
	secret := strings.TrimSpace(configs.JWTRefreshSecret)
	if secret == "" {
		return "", fiber.NewError(fiber.StatusInternalServerError, "JWT_REFRESH_SECRET belum diset")
	}
	return secret, nil
}

func strptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// computeRefreshHash: refresh token disimpan sebagai HMAC-SHA256, bukan plaintext.
func computeRefreshHash(token, secret string) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	_, _ = m.Write([]byte(token))
	return m.Sum(nil)
}

func buildAccessClaims(user *userModel.UserModel, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(accessTTLDefault).Unix(),
	}
}

// jti wajib: tanpa itu dua refresh token untuk user yang sama dalam detik
// yang sama identik byte-per-byte, dan hash-nya nabrak di tabel refresh_tokens.
func buildRefreshClaims(userID uuid.UUID, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": userID.String(),
		"typ": "refresh",
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(refreshTTLDefault).Unix(),
	}
}

/* ==========================
   REGISTER
========================== */

func Register(db *gorm.DB, c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return helpers.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := authHelper.ValidateRegisterInput(input.Email, input.Password); err != nil {
		return helpers.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	passwordHash, err := authHelper.HashPassword(input.Password)
	if err != nil {
		return helpers.JsonError(c, fiber.StatusInternalServerError, "Password hashing failed")
	}

	user := userModel.UserModel{
		Email:    input.Email,
		Password: passwordHash,
		IsActive: true,
	}
	if err := db.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return helpers.JsonError(c, fiber.StatusConflict, "Email sudah terdaftar")
		}
		return helpers.JsonError(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	// Mobile client langsung login setelah register
	return issueTokens(c, db, &user, fiber.StatusCreated, "Registrasi berhasil")
}

/* ==========================
   LOGIN
========================== */

func Login(db *gorm.DB, c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return helpers.JsonError(c, fiber.StatusBadRequest, "Invalid input format")
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := authHelper.ValidateLoginInput(input.Email, input.Password); err != nil {
		return helpers.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	var user userModel.UserModel
	if err := db.WithContext(c.UserContext()).
		Where("email = ?", input.Email).
		First(&user).Error; err != nil {
		// pesan sengaja sama dengan password salah
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Email atau Password salah")
	}
	if err := authHelper.CheckPasswordHash(user.Password, input.Password); err != nil {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Email atau Password salah")
	}
	if !user.IsActive {
		return helpers.JsonError(c, fiber.StatusForbidden, "Akun Anda telah dinonaktifkan. Hubungi admin.")
	}

	return issueTokens(c, db, &user, fiber.StatusOK, "Login berhasil")
}

/* ==========================
   LOGIN GOOGLE
========================== */

func LoginGoogle(db *gorm.DB, c *fiber.Ctx) error {
	var input struct {
		IDToken string `json:"id_token"`
	}
	if err := c.BodyParser(&input); err != nil || strings.TrimSpace(input.IDToken) == "" {
		return helpers.JsonError(c, fiber.StatusBadRequest, "id_token wajib diisi")
	}

	clientID := strings.TrimSpace(configs.GoogleClientID)
	if clientID == "" {
		return helpers.JsonError(c, fiber.StatusInternalServerError, "GOOGLE_CLIENT_ID belum diset")
	}

	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(input.IDToken, []string{clientID}); err != nil {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Google ID token invalid")
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(input.IDToken)
	if err != nil || strings.TrimSpace(claimSet.Email) == "" {
		return helpers.JsonError(c, fiber.StatusUnauthorized, "Google ID token tidak bisa dibaca")
	}

	email := strings.ToLower(strings.TrimSpace(claimSet.Email))
	googleID := claimSet.Sub

	var user userModel.UserModel
	err = db.WithContext(c.UserContext()).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		// sudah ada; simpan google_id kalau belum
		if user.GoogleID == nil && googleID != "" {
			_ = db.Model(&user).Update("google_id", googleID).Error
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// user baru via Google; password dummy (tidak bisa dipakai login biasa)
		dummyHash, herr := authHelper.HashPassword(uuid.NewString())
		if herr != nil {
			return helpers.JsonError(c, fiber.StatusInternalServerError, "Gagal membuat user")
		}
		user = userModel.UserModel{
			Email:    email,
			Password: dummyHash,
			GoogleID: strptr(googleID),
			IsActive: true,
		}
		if cerr := db.WithContext(c.UserContext()).Create(&user).Error; cerr != nil {
			if errors.Is(cerr, gorm.ErrDuplicatedKey) {
				// race register biasa vs google; ambil user yang sudah ada
				if ferr := db.Where("email = ?", email).First(&user).Error; ferr != nil {
					return helpers.JsonError(c, fiber.StatusInternalServerError, "Gagal mengambil user")
				}
			} else {
				return helpers.JsonError(c, fiber.StatusInternalServerError, "Gagal membuat user")
			}
		}
	default:
		return helpers.JsonError(c, fiber.StatusInternalServerError, "DB error")
	}

	if !user.IsActive {
		return helpers.JsonError(c, fiber.StatusForbidden, "Akun Anda telah dinonaktifkan. Hubungi admin.")
	}

	return issueTokens(c, db, &user, fiber.StatusOK, "Login berhasil")
}

/* ==========================
   ISSUE TOKENS + Response
========================== */

func issueTokens(c *fiber.Ctx, db *gorm.DB, user *userModel.UserModel, status int, message string) error {
	jwtSecret, err := getJWTSecret()
	if err != nil {
		return helpers.FromFiberError(c, err)
	}
	refreshSecret, err := getRefreshSecret()
	if err != nil {
		return helpers.FromFiberError(c, err)
	}

	now := nowUTC()

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, buildAccessClaims(user, now)).
		SignedString([]byte(jwtSecret))
	if err != nil {
		return helpers.JsonError(c, fiber.StatusInternalServerError, "Gagal membuat access token")
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, buildRefreshClaims(user.ID, now)).
		SignedString([]byte(refreshSecret))
	if err != nil {
		return helpers.JsonError(c, fiber.StatusInternalServerError, "Gagal membuat refresh token")
	}

	// Simpan refresh token (hashed)
	ua, ip := c.Get("User-Agent"), c.IP()
	if err := db.WithContext(c.UserContext()).Create(&authModel.RefreshTokenModel{
		UserID:    user.ID,
		TokenHash: computeRefreshHash(refreshToken, refreshSecret),
		ExpiresAt: now.Add(refreshTTLDefault),
		UserAgent: strptr(ua),
		IP:        strptr(ip),
	}).Error; err != nil {
		return helpers.JsonError(c, fiber.StatusInternalServerError, "Gagal menyimpan refresh token")
	}

	setAuthCookies(c, accessToken, refreshToken, now)

	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data": fiber.Map{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"user": fiber.Map{
				"id":    user.ID,
				"email": user.Email,
			},
		},
	})
}

func setAuthCookies(c *fiber.Ctx, accessToken, refreshToken string, now time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "None",
		Path:     "/",
		Expires:  now.Add(accessTTLDefault),
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "None",
		Path:     "/",
		Expires:  now.Add(refreshTTLDefault),
	})
}

/* ==========================
   LOGOUT
========================== */

func Logout(db *gorm.DB, c *fiber.Ctx) error {
	// access token diblacklist sampai exp-nya sendiri
	accessToken := extractAccessToken(c)
	if accessToken != "" {
		blacklist := authModel.TokenBlacklist{
			Token:     accessToken,
			ExpiredAt: time.Now().Add(resolveBlacklistTTL(accessToken)),
		}
		if err := db.WithContext(c.UserContext()).Create(&blacklist).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Printf("[logout] gagal blacklist token: %v", err)
		}
	}

	// revoke semua refresh token milik user
	if userID, err := helpers.GetUserIDFromToken(c); err == nil {
		now := nowUTC()
		if err := db.WithContext(c.UserContext()).
			Model(&authModel.RefreshTokenModel{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", &now).Error; err != nil {
			log.Printf("[logout] gagal revoke refresh token: %v", err)
		}
	}

	clearAuthCookies(c)
	return helpers.JsonOK(c, "Logout berhasil", nil)
}

func extractAccessToken(c *fiber.Ctx) string {
	authHeader := strings.TrimSpace(c.Get("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(c.Cookies("access_token"))
}

// resolveBlacklistTTL: sisa umur access token; fallback TTL penuh kalau
// exp tidak kebaca (token tetap diblacklist, aman walau lebih lama).
func resolveBlacklistTTL(accessToken string) time.Duration {
	claims := jwt.MapClaims{}
	parser := jwt.Parser{SkipClaimsValidation: true}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return accessTTLDefault
	}
	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return accessTTLDefault
	}
	remaining := time.Until(time.Unix(int64(expFloat), 0))
	if remaining <= 0 {
		return time.Minute
	}
	return remaining
}

func clearAuthCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)
	for _, name := range []string{"access_token", "refresh_token"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			HTTPOnly: true,
			Secure:   true,
			SameSite: "None",
			Path:     "/",
			Expires:  expired,
		})
	}
}
