package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
	maxLineBytes  = 1 << 20
)

func main() {
	var (
		dataDir     string
		pattern     string
		driver      string
		databaseURL string
		database    string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzipped NDJSON product dumps")
	flag.StringVar(&pattern, "pattern", "*.ndjson.gz", "file name pattern inside data-dir")
	flag.StringVar(&driver, "driver", "postgres", "storage driver: postgres or mongo")
	flag.StringVar(&databaseURL, "database-url", "", "connection URL (or DATABASE_URL / MONGODB_URI env)")
	flag.StringVar(&database, "database", "storefront", "MongoDB database name")
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

	if err := run(ctx, filepath.Join(dataDir, pattern), driver, databaseURL, database); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, glob, driver, databaseURL, database string) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "glob input files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}
	sort.Strings(files)

	store, closeStore, err := catalog.Open(ctx, driver, databaseURL, database)
	if err != nil {
		return err
	}
	defer closeStore()

	names, err := store.Names(ctx)
	if err != nil {
		return errors.Wrap(err, "load existing names")
	}
	d := newDedup(names)

	slog.Info("importing", slog.Int("files", len(files)), slog.Int("existing", len(names)))

	records := make(chan catalog.Record, 1024)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for i, f := range files {
		readers.Go(func() error {
			return streamFile(rctx, i, f, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})

	var written, skipped int
	g.Go(func() error {
		now := time.Now().UTC()
		for r := range records {
			p, err := accept(d, r, now)
			if err != nil {
				slog.Warn("skipping invalid record", slog.String("name", r.Name), slog.String("error", err.Error()))
				skipped++
				continue
			}
			if p == nil {
				skipped++
				continue
			}
			if err := store.Upsert(gctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %q", p.Name)
			}
			written++
			if written%progressEvery == 0 {
				slog.Info("write progress", slog.Int("written", written), slog.Int("skipped", skipped))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import complete", slog.Int("written", written), slog.Int("skipped", skipped))
	return nil
}

// accept validates r and claims its name. It returns nil without error when
// the name is already taken. Invalid records never claim a name.
func accept(d *dedup, r catalog.Record, now time.Time) (*product.Product, error) {
	p, err := r.Product(now)
	if err != nil {
		return nil, err
	}
	if !d.add(p.Name) {
		return nil, nil
	}
	return p, nil
}

// dedup tracks product names already in the catalog. The bloom filter
// answers most lookups; positives are confirmed against the exact set.
// Not safe for concurrent use.
type dedup struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newDedup(existing []string) *dedup {
	capacity := uint(bloomCapacity)
	if n := uint(len(existing)) * 2; n > capacity {
		capacity = n
	}
	d := &dedup{
		filter: bloom.NewWithEstimates(capacity, bloomFPR),
		exact:  make(map[string]struct{}, len(existing)),
	}
	for _, name := range existing {
		d.add(name)
	}
	return d
}

// add records name and reports whether it was new.
func (d *dedup) add(name string) bool {
	key := catalog.NormalizeName(name)
	if key == "" {
		return false
	}
	if d.filter.TestString(key) {
		if _, ok := d.exact[key]; ok {
			return false
		}
	}
	d.filter.AddString(key)
	d.exact[key] = struct{}{}
	return true
}

// streamFile decodes one gzipped NDJSON file and sends each record to out.
func streamFile(ctx context.Context, idx int, path string, out chan<- catalog.Record) error {
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

	return decodeLines(ctx, gz, func(r catalog.Record) error {
		select {
		case out <- r:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, func(line int, err error) {
		slog.Warn("skipping malformed line",
			slog.Int("file", idx+1),
			slog.Int("line", line),
			slog.String("error", err.Error()),
		)
	})
}

// decodeLines parses NDJSON records from r. Blank lines are ignored and
// malformed ones reported through bad.
func decodeLines(ctx context.Context, r io.Reader, fn func(catalog.Record) error, bad func(line int, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec catalog.Record
		if err := json.Unmarshal(b, &rec); err != nil {
			bad(line, err)
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "scan")
}
