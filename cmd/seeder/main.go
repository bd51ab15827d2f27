// cmd/seeder/main.go
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/salesflow-be/internal/adapters/db"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/pkg/config"
	"github.com/ammerola/salesflow-be/internal/pkg/logger"
	"github.com/ammerola/salesflow-be/migrations"
)

// catalogRow is one product line from a catalog file, numbered as the
// user sees it in a spreadsheet
type catalogRow struct {
	Row     int
	Product domain.Product
}

var catalogAliases = map[string]string{
	"sku":                 "sku",
	"code":                "sku",
	"name":                "name",
	"product":             "name",
	"description":         "description",
	"price":               "price",
	"unit_price":          "price",
	"stock":               "stock",
	"stock_quantity":      "stock",
	"quantity":            "stock",
	"low_stock_threshold": "threshold",
	"threshold":           "threshold",
}

// demoCatalog is loaded with -demo when no catalog file is given
var demoCatalog = []domain.Product{
	{SKU: "BEANS-ESP-1KG", Name: "Espresso Beans 1kg", Price: decimal.RequireFromString("24.90"), StockQuantity: 40},
	{SKU: "BEANS-FLT-500", Name: "Filter Beans 500g", Price: decimal.RequireFromString("13.50"), StockQuantity: 60},
	{SKU: "MILK-OAT-1L", Name: "Oat Milk 1L", Price: decimal.RequireFromString("2.40"), StockQuantity: 120, LowStockThreshold: 24},
	{SKU: "MILK-WHL-1L", Name: "Whole Milk 1L", Price: decimal.RequireFromString("1.30"), StockQuantity: 80, LowStockThreshold: 24},
	{SKU: "CUP-12OZ", Name: "Paper Cup 12oz", Price: decimal.RequireFromString("0.12"), StockQuantity: 2000, LowStockThreshold: 250},
	{SKU: "LID-12OZ", Name: "Cup Lid 12oz", Price: decimal.RequireFromString("0.05"), StockQuantity: 2000, LowStockThreshold: 250},
	{SKU: "SYR-VAN", Name: "Vanilla Syrup", Price: decimal.RequireFromString("7.90"), StockQuantity: 12, LowStockThreshold: 3},
	{SKU: "SYR-CAR", Name: "Caramel Syrup", Price: decimal.RequireFromString("7.90"), StockQuantity: 9, LowStockThreshold: 3},
	{SKU: "PAS-CRO", Name: "Butter Croissant", Price: decimal.RequireFromString("2.80"), StockQuantity: 30, LowStockThreshold: 6},
	{SKU: "PAS-MUF", Name: "Blueberry Muffin", Price: decimal.RequireFromString("3.20"), StockQuantity: 24, LowStockThreshold: 6},
	{SKU: "TEA-EGR", Name: "Earl Grey Tea 50 bags", Price: decimal.RequireFromString("5.60"), StockQuantity: 18},
	{SKU: "FLT-V60", Name: "V60 Paper Filters", Price: decimal.RequireFromString("6.40"), StockQuantity: 15},
}

func main() {
	var (
		catalogFile = flag.String("catalog", "", "CSV or XLSX catalog with sku, name, price and stock columns")
		demo        = flag.Bool("demo", false, "Load the built-in demo catalog")
		migrate     = flag.Bool("migrate", true, "Apply schema migrations first")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun      = flag.Bool("dry-run", false, "Preview changes without modifying database")
	)
	flag.Parse()

	log := logger.SetupLogger(*logLevel, "text")

	if *catalogFile == "" && !*demo {
		fmt.Fprintln(os.Stderr, "either -catalog or -demo is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(log)
	if err != nil {
		log.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var rows []catalogRow
	if *catalogFile != "" {
		data, err := os.ReadFile(*catalogFile)
		if err != nil {
			log.Error("failed to read catalog", slog.String("error", err.Error()))
			os.Exit(1)
		}
		rows, err = parseCatalog(*catalogFile, data)
		if err != nil {
			log.Error("failed to parse catalog", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		for i, p := range demoCatalog {
			rows = append(rows, catalogRow{Row: i + 1, Product: p})
		}
	}
	applyDefaultThreshold(rows, cfg.Sales.DefaultLowStock)

	if *dryRun {
		for _, r := range rows {
			fmt.Printf("%4d  %-16s %-28s %10s %6d (low at %d)\n",
				r.Row, r.Product.SKU, r.Product.Name, r.Product.Price.StringFixed(2),
				r.Product.StockQuantity, r.Product.LowStockThreshold)
		}
		fmt.Printf("\n[DRY RUN] %d products parsed, no changes were made to the database\n", len(rows))
		return
	}

	ctx := context.Background()

	if *migrate {
		if err := db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
			DatabaseURL: cfg.GetDatabaseURL(),
			Source:      migrations.FS,
		}, log, 3); err != nil {
			log.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     4,
		MinConnections:     1,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	created, updated, failed := seedProducts(ctx, db.NewProductRepository(database, log), rows, log)

	fmt.Println("\n" + strings.Repeat("=", 48))
	fmt.Println("SEED SUMMARY")
	fmt.Println(strings.Repeat("=", 48))
	fmt.Printf("Products created: %d\n", created)
	fmt.Printf("Products updated: %d\n", updated)
	fmt.Printf("Rows failed:      %d\n", failed)

	log.Info("seed operation completed",
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

// seedProducts upserts rows by SKU. Existing products get the catalog's
// name, price, stock and threshold.
func seedProducts(ctx context.Context, repo ports.ProductRepository, rows []catalogRow, log *slog.Logger) (created, updated, failed int) {
	for _, r := range rows {
		p := r.Product
		existing, err := repo.FindBySKU(ctx, p.SKU)
		if err != nil {
			log.Error("failed to look up product",
				slog.Int("row", r.Row),
				slog.String("sku", p.SKU),
				slog.String("error", err.Error()))
			failed++
			continue
		}

		if existing == nil {
			if err := repo.Create(ctx, &p); err != nil {
				log.Error("failed to create product",
					slog.Int("row", r.Row),
					slog.String("sku", p.SKU),
					slog.String("error", err.Error()))
				failed++
				continue
			}
			created++
			continue
		}

		existing.Name = p.Name
		existing.Description = p.Description
		existing.Price = p.Price
		existing.StockQuantity = p.StockQuantity
		existing.LowStockThreshold = p.LowStockThreshold
		if err := repo.Update(ctx, existing); err != nil {
			log.Error("failed to update product",
				slog.Int("row", r.Row),
				slog.String("sku", p.SKU),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		updated++
	}
	return created, updated, failed
}

func applyDefaultThreshold(rows []catalogRow, threshold int) {
	if threshold <= 0 {
		return
	}
	for i := range rows {
		if rows[i].Product.LowStockThreshold == 0 {
			rows[i].Product.LowStockThreshold = threshold
		}
	}
}

// parseCatalog reads a catalog file. Every row is validated; the first
// bad row fails the whole file so a typo never half-seeds a catalog.
func parseCatalog(fileName string, data []byte) ([]catalogRow, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		records, err = readCSV(data)
	case ".xlsx":
		records, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("unsupported catalog type %q", filepath.Ext(fileName))
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("catalog is empty")
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := catalogAliases[key]; ok {
			cols[field] = i
		}
	}
	for _, required := range []string{"sku", "name", "price"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("catalog has no %s column", required)
		}
	}

	get := func(rec []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []catalogRow
	seen := map[string]int{}
	for n, rec := range records[1:] {
		rowNum := n + 2
		if strings.TrimSpace(strings.Join(rec, "")) == "" {
			continue
		}

		p := domain.Product{
			SKU:         get(rec, "sku"),
			Name:        get(rec, "name"),
			Description: get(rec, "description"),
		}
		if p.Price, err = decimal.NewFromString(get(rec, "price")); err != nil {
			return nil, fmt.Errorf("row %d: invalid price %q", rowNum, get(rec, "price"))
		}
		if s := get(rec, "stock"); s != "" {
			if p.StockQuantity, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("row %d: invalid stock %q", rowNum, s)
			}
		}
		if s := get(rec, "threshold"); s != "" {
			if p.LowStockThreshold, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("row %d: invalid threshold %q", rowNum, s)
			}
		}
		// Validate fills in the domain default threshold, which would hide
		// the configured one, so only check a copy.
		check := p
		if err := check.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		key := strings.ToLower(p.SKU)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("row %d: sku %q already listed on row %d", rowNum, p.SKU, prev)
		}
		seen[key] = rowNum

		rows = append(rows, catalogRow{Row: rowNum, Product: p})
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		records = append(records, rec)
	}
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, nil
	}

	sheet := file.Sheets[0]
	var records [][]string
	err = sheet.ForEachRow(func(r *xlsx.Row) error {
		rec := make([]string, sheet.MaxCol)
		for i := range rec {
			if c := r.GetCell(i); c != nil {
				rec[i] = c.String()
			}
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process Excel rows: %w", err)
	}
	return records, nil
}
