package configs

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var (
	JWTSecret        string
	JWTRefreshSecret string
	GoogleClientID   string
)

/* =======================
   A/B TEST DEFAULTS
======================= */

type ABTestDefaultGroup struct {
	Name        string
	Description string
}

type ABTestDefaultConfig struct {
	TestName        string
	TestDescription string
	Groups          []ABTestDefaultGroup
}

// ABTestDefault adalah konfigurasi test bawaan yang di-provision saat boot.
// Nama test & nama group bisa dioverride via ENV, sisanya pakai default.
var ABTestDefault = loadABTestDefault()

func loadABTestDefault() ABTestDefaultConfig {
	cfg := ABTestDefaultConfig{
		TestName:        GetEnv("ABTEST_DEFAULT_TEST_NAME", "home_ui_test"),
		TestDescription: "Testing home screen UI variants",
		Groups: []ABTestDefaultGroup{
			{Name: "variant_a", Description: "Control variant - original UI"},
			{Name: "variant_b", Description: "Treatment variant - new UI"},
		},
	}

	// Override nama group via ENV (comma-separated), deskripsi dikosongkan.
	if raw := strings.TrimSpace(os.Getenv("ABTEST_DEFAULT_GROUPS")); raw != "" {
		var groups []ABTestDefaultGroup
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			groups = append(groups, ABTestDefaultGroup{Name: name})
		}
		if len(groups) > 0 {
			cfg.Groups = groups
		}
	}
	return cfg
}

/* =======================
   ENV LOADER
======================= */

func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ Tidak menemukan .env file, menggunakan ENV dari sistem")
		} else {
			log.Println("✅ .env file berhasil dimuat!")
		}
	} else {
		log.Println("🚀 Running in Railway, menggunakan ENV dari sistem")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	JWTRefreshSecret = GetEnv("JWT_REFRESH_SECRET")
	GoogleClientID = GetEnv("GOOGLE_CLIENT_ID")
	ABTestDefault = loadABTestDefault()

	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET belum diset!")
	}
	if JWTRefreshSecret == "" {
		log.Println("❌ JWT_REFRESH_SECRET belum diset!")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}
