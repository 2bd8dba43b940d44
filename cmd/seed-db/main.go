package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pasheon/boutique-backend/internal/handler"
	"github.com/pasheon/boutique-backend/internal/storage/postgres"
)

type productJSON struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	ImageURL string          `json:"image_url"`
}

type couponSeed struct {
	Code         string
	DiscountType string
	Value        decimal.Decimal
	MinCartValue decimal.Decimal
	MaxDiscount  *decimal.Decimal
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or BOUTIQUE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BOUTIQUE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("BOUTIQUE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or BOUTIQUE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BOUTIQUE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	const upsert = `
		INSERT INTO products (id, name, image_url, price, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, image_url = EXCLUDED.image_url,
		    price = EXCLUDED.price, category = EXCLUDED.category`

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsert, p.ID, p.Name, p.ImageURL, p.Price, p.Category); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}

		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	// Seeding inserts explicit ids, so the sequence must be bumped past them.
	const fixSequence = `
		SELECT setval(pg_get_serial_sequence('products', 'id'), (SELECT COALESCE(MAX(id), 1) FROM products))`
	if _, err := pool.Exec(ctx, fixSequence); err != nil {
		return errors.Wrap(err, "advance products id sequence")
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding sample coupons")

	cap50 := decimal.NewFromInt(50)
	coupons := []couponSeed{
		{
			Code:         "WELCOME10",
			DiscountType: "percentage",
			Value:        decimal.NewFromInt(10),
			MinCartValue: decimal.NewFromInt(200),
			MaxDiscount:  &cap50,
		},
		{
			Code:         "FLAT100",
			DiscountType: "flat",
			Value:        decimal.NewFromInt(100),
			MinCartValue: decimal.NewFromInt(500),
		},
	}

	const upsert = `
		INSERT INTO coupons (code, discount_type, discount_value, min_cart_value, max_discount, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (code) DO UPDATE
		SET discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
		    min_cart_value = EXCLUDED.min_cart_value, max_discount = EXCLUDED.max_discount,
		    active = TRUE`

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsert, c.Code, c.DiscountType, c.Value, c.MinCartValue, c.MaxDiscount); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("type", c.DiscountType))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	keyHash := handler.HashAPIKey(apiKey, []byte(pepper))

	const upsert = `
		INSERT INTO api_keys (key_hash, name, active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET active = TRUE`

	if _, err := pool.Exec(ctx, upsert, keyHash, "Default admin key"); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("name", "Default admin key"))

	return nil
}
