package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Shipping es la única fuente de la regla de envío; carrito y checkout leen de acá.
type Shipping struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
	Currency      string
}

var (
	DefaultFreeShippingThreshold = decimal.NewFromInt(150)
	DefaultShippingFlatFee       = decimal.RequireFromString("9.90")
)

const DefaultCurrency = "EUR"

type Payments struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type Analytics struct {
	PixelID             string
	PixelEndpoint       string
	ConversionsEndpoint string
	AccessToken         string
}

type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	NotifyTo string
}

type Config struct {
	Env           string
	Port          string
	BaseURL       string
	DSN           string
	StoreBackend  string // cookie | redis | memory
	RedisAddr     string
	SessionSecret string
	SessionTTL    time.Duration
	VerifyURL     string
	AdminToken    string
	CORSOrigins   []string
	SeedDemo      bool

	Shipping  Shipping
	Payments  Payments
	Analytics Analytics
	SMTP      SMTP
}

func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

// Load lee .env (si existe) y el entorno.
func Load() Config {
	_ = godotenv.Load()

	c := Config{
		Env:           strings.ToLower(os.Getenv("APP_ENV")),
		Port:          env("PORT", "8080"),
		BaseURL:       strings.TrimRight(env("BASE_URL", "http://localhost:8080"), "/"),
		DSN:           dsn(),
		StoreBackend:  strings.ToLower(env("STORE_BACKEND", "cookie")),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		SessionSecret: os.Getenv("SESSION_KEY"),
		SessionTTL:    envDuration("SESSION_TTL", 30*24*time.Hour),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		SeedDemo:      os.Getenv("SEED_DEMO") == "1",
	}
	if c.SessionSecret == "" {
		zlog.Warn().Msg("SESSION_KEY vacío, usando clave de desarrollo")
		c.SessionSecret = "dev-insecure"
	}
	c.VerifyURL = env("VERIFY_URL", c.BaseURL+"/api/orders/verify")
	for _, o := range strings.Split(env("CORS_ORIGINS", c.BaseURL), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.CORSOrigins = append(c.CORSOrigins, o)
		}
	}

	c.Shipping = Shipping{
		FreeThreshold: envDecimal("FREE_SHIPPING_THRESHOLD", DefaultFreeShippingThreshold),
		FlatFee:       envDecimal("SHIPPING_FLAT_FEE", DefaultShippingFlatFee),
		Currency:      strings.ToUpper(env("STORE_CURRENCY", DefaultCurrency)),
	}

	key := os.Getenv("PAYMENTS_SECRET_KEY")
	if c.Env == "production" || c.Env == "prod" {
		if prod := os.Getenv("PAYMENTS_PROD_SECRET_KEY"); prod != "" {
			key = prod
		}
	}
	c.Payments = Payments{
		SecretKey: key,
		BaseURL:   strings.TrimRight(env("PAYMENTS_API_URL", "https://api.stripe.com"), "/"),
		Timeout:   envDuration("PAYMENTS_TIMEOUT", 10*time.Second),
	}

	c.Analytics = Analytics{
		PixelID:             os.Getenv("PIXEL_ID"),
		PixelEndpoint:       env("PIXEL_ENDPOINT", "https://www.facebook.com/tr"),
		ConversionsEndpoint: env("CONVERSIONS_ENDPOINT", "https://graph.facebook.com/v19.0"),
		AccessToken:         os.Getenv("CONVERSIONS_ACCESS_TOKEN"),
	}

	port, _ := strconv.Atoi(env("SMTP_PORT", "587"))
	c.SMTP = SMTP{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     port,
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		NotifyTo: env("ORDER_NOTIFY_EMAIL", "pedidos@kamba.store"),
	}
	return c
}

func dsn() string {
	if v := strings.TrimSpace(os.Getenv("DB_DSN")); v != "" {
		return v
	}
	host := env("DB_HOST", "localhost")
	port := env("DB_PORT", "5432")
	user := firstNonEmpty(os.Getenv("DB_USER"), os.Getenv("POSTGRES_USER"), "postgres")
	pass := firstNonEmpty(os.Getenv("DB_PASSWORD"), os.Getenv("POSTGRES_PASSWORD"), "postgres")
	name := firstNonEmpty(os.Getenv("DB_NAME"), os.Getenv("POSTGRES_DB"), "kambashop")
	ssl := env("DB_SSLMODE", "disable")
	return "host=" + host + " user=" + user + " password=" + pass + " dbname=" + name + " port=" + port + " sslmode=" + ssl
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil || d.IsNegative() {
		zlog.Warn().Str("key", key).Str("value", raw).Msg("valor decimal inválido, usando default")
		return def
	}
	return d
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		zlog.Warn().Str("key", key).Str("value", raw).Msg("duración inválida, usando default")
		return def
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
