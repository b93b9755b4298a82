package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/catalog"
)

func main() {
	var (
		driver       string
		databaseURL  string
		database     string
		productsFile string
	)

	flag.StringVar(&driver, "driver", "postgres", "storage driver: postgres or mongo")
	flag.StringVar(&databaseURL, "database-url", "", "connection URL (or DATABASE_URL / MONGODB_URI env)")
	flag.StringVar(&database, "database", "storefront", "MongoDB database name")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (embedded seed when empty)")
	flag.Parse()

	if databaseURL == "" {
		if driver == "mongo" {
			databaseURL = os.Getenv("MONGODB_URI")
		} else {
			databaseURL = os.Getenv("DATABASE_URL")
		}
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url, DATABASE_URL or MONGODB_URI")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, driver, databaseURL, database, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, driver, databaseURL, database, productsFile string) error {
	data := db.SeedProducts
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))

		b, err := os.ReadFile(productsFile)
		if err != nil {
			return errors.Wrap(err, "read products file")
		}
		data = b
	}

	records, err := catalog.Decode(data)
	if err != nil {
		return err
	}

	slog.Info("connecting to storage", slog.String("driver", driver))

	store, closeStore, err := catalog.Open(ctx, driver, databaseURL, database)
	if err != nil {
		return err
	}
	defer closeStore()

	slog.Info("upserting products", slog.Int("count", len(records)))

	now := time.Now().UTC()
	for _, r := range records {
		p, err := r.Product(now)
		if err != nil {
			return errors.Wrapf(err, "product %q", r.Name)
		}
		if err := store.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}
