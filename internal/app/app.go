package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/phenrril/kambashop/internal/adapters/analytics"
	"github.com/phenrril/kambashop/internal/adapters/export"
	"github.com/phenrril/kambashop/internal/adapters/httpserver"
	"github.com/phenrril/kambashop/internal/adapters/notify"
	"github.com/phenrril/kambashop/internal/adapters/payments/stripe"
	"github.com/phenrril/kambashop/internal/adapters/repo/postgres"
	"github.com/phenrril/kambashop/internal/adapters/storage/cookiestore"
	"github.com/phenrril/kambashop/internal/adapters/storage/memstore"
	"github.com/phenrril/kambashop/internal/adapters/storage/redisstore"
	"github.com/phenrril/kambashop/internal/adapters/verifier"
	"github.com/phenrril/kambashop/internal/config"
	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/internal/usecase"
	"github.com/phenrril/kambashop/pkg/idempotency"
)

type App struct {
	Cfg   config.Config
	DB    *gorm.DB
	Redis *redis.Client

	Pricing      usecase.Pricing
	ProductUC    *usecase.ProductUC
	Verification *usecase.VerificationUC
	Ledger       *usecase.OrderLedgerUC
	Gateway      domain.PaymentGateway
	Sessions     httpserver.SessionStores
	Pixel        *analytics.Pixel
}

func NewApp(cfg config.Config, db *gorm.DB) (*App, error) {
	a := &App{Cfg: cfg, DB: db}
	a.Pricing = usecase.NewPricing(cfg.Shipping)

	prodRepo := postgres.NewProductRepo(db)
	orderRepo := postgres.NewOrderRepo(db)
	custRepo := postgres.NewCustomerRepo(db)

	if cfg.Payments.SecretKey == "" {
		zlog.Warn().Msg("PAYMENTS_SECRET_KEY vacío, el checkout va a fallar al crear el intento")
	}
	a.Gateway = stripe.NewGateway(cfg.Payments.SecretKey, cfg.Payments.BaseURL, cfg.Payments.Timeout)

	var dedup usecase.Deduper
	switch cfg.StoreBackend {
	case "redis":
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.Sessions = redisstore.Provider{Client: a.Redis, TTL: cfg.SessionTTL}
	case "memory":
		a.Sessions = memstore.NewProvider()
	case "cookie", "":
		a.Sessions = cookiestore.Provider{Secret: []byte(cfg.SessionSecret), MaxAge: int(cfg.SessionTTL / time.Second)}
	default:
		return nil, fmt.Errorf("STORE_BACKEND desconocido: %q", cfg.StoreBackend)
	}
	if a.Redis == nil && cfg.RedisAddr != "" && cfg.StoreBackend != "memory" {
		// la dedup de conversiones usa redis aunque las sesiones vayan en cookie
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	if a.Redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := a.Redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			if cfg.StoreBackend == "redis" {
				return nil, fmt.Errorf("redis: %w", err)
			}
			zlog.Warn().Err(err).Msg("redis no disponible, dedup de conversiones sólo por flag de la orden")
			_ = a.Redis.Close()
			a.Redis = nil
		} else {
			dedup = idempotency.NewStore(a.Redis, 7*24*time.Hour)
		}
	}

	a.Pixel = analytics.NewPixel(cfg.Analytics.PixelID, cfg.Analytics.PixelEndpoint)
	a.ProductUC = &usecase.ProductUC{Products: prodRepo}
	a.Verification = usecase.NewVerificationUC(verifier.NewClient(cfg.VerifyURL, cfg.Payments.Timeout), a.Pixel)

	ledger := &usecase.OrderLedgerUC{
		Gateway:   a.Gateway,
		Orders:    orderRepo,
		Customers: custRepo,
		Dedup:     dedup,
	}
	if cfg.Analytics.PixelID != "" && cfg.Analytics.AccessToken != "" {
		ledger.Conversions = analytics.NewConversions(cfg.Analytics.ConversionsEndpoint, cfg.Analytics.PixelID, cfg.Analytics.AccessToken)
	} else {
		zlog.Warn().Msg("conversions api sin configurar, sólo se envía el beacon del navegador")
	}
	// un *Mailer nil dentro de la interfaz no sería nil
	if m := notify.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.NotifyTo); m != nil {
		ledger.Notifier = m
	} else {
		zlog.Warn().Msg("SMTP no configurado, no se notifican órdenes por email")
	}
	a.Ledger = ledger
	return a, nil
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(httpserver.Deps{
		Sessions:     a.Sessions,
		Pricing:      a.Pricing,
		Products:     a.ProductUC,
		Gateway:      a.Gateway,
		Verification: a.Verification,
		Ledger:       a.Ledger,
		Exporter:     export.XLSX{},
		ReturnURL:    a.Cfg.BaseURL + "/checkout/confirmation",
		AdminToken:   a.Cfg.AdminToken,
		CORSOrigins:  a.Cfg.CORSOrigins,
	})
}

// Close espera los beacons pendientes y libera conexiones.
func (a *App) Close() {
	if a.Pixel != nil {
		a.Pixel.Wait()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

func (a *App) MigrateAndSeed() error {
	if err := a.DB.AutoMigrate(&domain.Product{}, &domain.Image{}, &domain.Customer{}, &domain.Order{}); err != nil {
		return err
	}
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)").Error
	if !a.Cfg.SeedDemo {
		return nil
	}
	var count int64
	if err := a.DB.Model(&domain.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		seedProducts(context.Background(), a.ProductUC)
	}
	return nil
}

func seedProducts(ctx context.Context, uc *usecase.ProductUC) {
	prods := []domain.Product{
		{Name: "Camisa de lino", Price: decimal.RequireFromString("89.00"), Category: "camisas", Colors: []string{"blanco", "azul"}, Sizes: []string{"S", "M", "L"},
			Images: []domain.Image{{URL: "/img/camisa-lino.jpg"}, {URL: "/img/camisa-lino-azul.jpg", Color: "azul"}}},
		{Name: "Vestido midi", Price: decimal.RequireFromString("129.90"), Category: "vestidos", Colors: []string{"negro", "terracota"}, Sizes: []string{"XS", "S", "M"},
			Images: []domain.Image{{URL: "/img/vestido-midi.jpg"}, {URL: "/img/vestido-midi-terracota-s.jpg", Color: "terracota", Size: "S"}}},
		{Name: "Pañuelo de seda", Price: decimal.RequireFromString("45.00"), Category: "accesorios", Colors: []string{"estampado"}},
		{Name: "Pantalón sastrero", Price: decimal.RequireFromString("99.50"), Category: "pantalones", Colors: []string{"gris", "negro"}, Sizes: []string{"36", "38", "40", "42"}},
	}
	for i := range prods {
		p := prods[i]
		p.ID = uuid.New()
		p.Currency = config.DefaultCurrency
		p.Active = true
		p.Slug = strings.ToLower(strings.NewReplacer(" ", "-", "ñ", "n", "ó", "o").Replace(p.Name))
		if err := uc.Create(ctx, &p); err != nil {
			zlog.Warn().Err(err).Str("slug", p.Slug).Msg("seed producto")
		}
	}
}
