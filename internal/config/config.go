package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	// stripePriceTable は (プランID, 課金サイクル) → Stripe価格IDの静的テーブル。
	stripePriceTable map[model.PlanID]map[model.BillingCycle]string

	// Rate Limit
	RateLimitGeneral  int
	RateLimitCheckout int

	// Cleanup
	CleanupInterval time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// 決済機能が成立しないため、Stripeシークレットの欠落は起動時に致命的エラーとする。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	if cfg.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}

	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	if cfg.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	// 価格テーブル: 有料プラン×課金サイクルの全組み合わせが必須。
	// 欠けがあるままトラフィックを受けると解決不能なチェックアウトが発生するため、
	// 起動時に完全性を検証する。
	priceEnvKeys := map[model.PlanID]map[model.BillingCycle]string{
		model.PlanStandard: {
			model.BillingCycleMonthly: "STRIPE_PRICE_STANDARD_MONTHLY",
			model.BillingCycleYearly:  "STRIPE_PRICE_STANDARD_YEARLY",
		},
		model.PlanPremium: {
			model.BillingCycleMonthly: "STRIPE_PRICE_PREMIUM_MONTHLY",
			model.BillingCycleYearly:  "STRIPE_PRICE_PREMIUM_YEARLY",
		},
	}

	cfg.stripePriceTable = make(map[model.PlanID]map[model.BillingCycle]string)
	for plan, cycles := range priceEnvKeys {
		cfg.stripePriceTable[plan] = make(map[model.BillingCycle]string)
		for cycle, envKey := range cycles {
			v := os.Getenv(envKey)
			if v == "" {
				missing = append(missing, envKey)
				continue
			}
			cfg.stripePriceTable[plan][cycle] = v
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCheckout = getEnvInt("RATE_LIMIT_CHECKOUT", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ResolvePriceID は (プランID, 課金サイクル) をStripe価格IDに解決する。
// 解決できない組み合わせはクライアントエラーであり、デフォルト値への置き換えは行わない。
func (c *Config) ResolvePriceID(plan model.PlanID, cycle model.BillingCycle) (string, bool) {
	cycles, ok := c.stripePriceTable[plan]
	if !ok {
		return "", false
	}
	priceID, ok := cycles[cycle]
	return priceID, ok
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
