package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pasheon/boutique-backend/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	numWorkers    = 4
	progressEvery = 100_000
	expiryLayout  = "2006-01-02"
)

// couponLine is one JSON-lines record from a campaign export.
type couponLine struct {
	Code         string
	Kind         string
	Value        decimal.Decimal
	MinCartValue decimal.Decimal
	MaxDiscount  *decimal.Decimal
	ExpiryDate   *time.Time
}

func main() {
	var (
		couponsFile string
		databaseURL string
	)

	flag.StringVar(&couponsFile, "coupons-file", "data/coupons.jsonl.gz", "gzipped JSON-lines coupon export")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, couponsFile, databaseURL); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, couponsFile, databaseURL string) error {
	if _, err := os.Stat(couponsFile); err != nil {
		return errors.Wrapf(err, "check file %s", couponsFile)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// Existing codes go into a bloom filter so the import can cheaply skip
	// records seen in a previous run. The filter is test-only once built,
	// which makes it safe to share across workers.
	filter, err := loadExistingCodes(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "load existing codes")
	}

	inserted, skipped, err := importCoupons(ctx, pool, couponsFile, filter)
	if err != nil {
		return errors.Wrap(err, "import coupons")
	}

	slog.Info("import finished",
		slog.Int64("inserted", inserted),
		slog.Int64("skipped", skipped),
	)

	return nil
}

func loadExistingCodes(ctx context.Context, pool *pgxpool.Pool) (*bloom.BloomFilter, error) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	rows, err := pool.Query(ctx, `SELECT code FROM coupons`)
	if err != nil {
		return nil, errors.Wrap(err, "query existing codes")
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect existing codes")
	}

	for _, code := range codes {
		filter.AddString(code)
	}

	slog.Info("loaded existing codes", slog.Int("count", len(codes)))

	return filter, nil
}

// importCoupons streams the gzipped export and inserts records concurrently.
// A single reader goroutine feeds raw lines to a worker pool; each worker
// decodes and inserts. Codes already present are skipped via the bloom
// filter, with ON CONFLICT DO NOTHING catching false negatives and
// duplicates within the file itself.
func importCoupons(ctx context.Context, pool *pgxpool.Pool, path string, filter *bloom.BloomFilter) (inserted, skipped int64, err error) {
	var (
		insertedCount atomic.Int64
		skippedCount  atomic.Int64
	)

	lines := make(chan []byte, numWorkers*4)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(lines)
		return streamGzLines(ctx, path, lines)
	})

	for range numWorkers {
		g.Go(func() error {
			for line := range lines {
				record, err := decodeCouponLine(line)
				if err != nil {
					return errors.Wrapf(err, "decode line %q", line)
				}

				if filter.TestString(record.Code) {
					skippedCount.Add(1)
					continue
				}

				tag, err := pool.Exec(ctx, `
					INSERT INTO coupons (code, discount_type, discount_value, min_cart_value, max_discount, expiry_date, active)
					VALUES ($1, $2, $3, $4, $5, $6, TRUE)
					ON CONFLICT (code) DO NOTHING`,
					record.Code, record.Kind, record.Value, record.MinCartValue, record.MaxDiscount, record.ExpiryDate,
				)
				if err != nil {
					return errors.Wrapf(err, "insert coupon %s", record.Code)
				}

				if tag.RowsAffected() == 0 {
					skippedCount.Add(1)
					continue
				}

				if n := insertedCount.Add(1); n%progressEvery == 0 {
					slog.Info("import progress", slog.Int64("inserted", n))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	return insertedCount.Load(), skippedCount.Load(), nil
}

// streamGzLines opens a gzip-compressed file and sends each non-empty line
// to out. The caller owns closing out.
func streamGzLines(ctx context.Context, path string, out chan<- []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer between calls.
		buf := make([]byte, len(line))
		copy(buf, line)

		select {
		case out <- buf:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

func decodeCouponLine(line []byte) (couponLine, error) {
	var record couponLine

	d := jx.DecodeBytes(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "code")
			}
			record.Code = s
		case "kind":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "kind")
			}
			record.Kind = s
		case "value":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "value")
			}
			record.Value = v
		case "min_cart_value":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "min_cart_value")
			}
			record.MinCartValue = v
		case "max_discount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "max_discount")
			}
			record.MaxDiscount = &v
		case "expiry_date":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "expiry_date")
			}
			t, err := time.Parse(expiryLayout, s)
			if err != nil {
				return errors.Wrap(err, "parse expiry_date")
			}
			record.ExpiryDate = &t
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return couponLine{}, err
	}

	if record.Code == "" {
		return couponLine{}, errors.New("missing code")
	}
	if record.Kind != "flat" && record.Kind != "percentage" {
		return couponLine{}, errors.Errorf("unknown kind %q", record.Kind)
	}

	return record, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	// Num preserves quotes for string-encoded numbers.
	return decimal.NewFromString(strings.Trim(n.String(), `"`))
}
