// internal/workers/import_parser.go
package workers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// ErrUnsupportedFile is returned for uploads that are neither CSV nor XLSX
var ErrUnsupportedFile = errors.New("unsupported file type")

// importRow is one parsed data row of a sales file
type importRow struct {
	Row      int // 1-based, header is row 1
	Line     domain.SaleLineRequest
	Name     string
	SaleRef  string
	SaleDate *time.Time
	Err      error
}

type columnIndex struct {
	productID, sku, name, quantity, saleRef, saleDate int
}

var headerAliases = map[string]string{
	"product_id":   "product_id",
	"id":           "product_id",
	"sku":          "sku",
	"name":         "name",
	"product":      "name",
	"product_name": "name",
	"quantity":     "quantity",
	"qty":          "quantity",
	"sale_ref":     "sale_ref",
	"ref":          "sale_ref",
	"receipt":      "sale_ref",
	"sale_date":    "sale_date",
	"date":         "sale_date",
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
	"01/02/2006",
}

// parseSalesFile reads a CSV or XLSX sales file. Rows that cannot become a
// sale line carry Err; a missing or unusable header fails the whole file.
func parseSalesFile(fileName string, data []byte) ([]importRow, error) {
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
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, fileName)
	}
	if err != nil {
		return nil, err
	}
	return parseRecords(records)
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
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
		for i := 0; i < sheet.MaxCol; i++ {
			c := r.GetCell(i)
			if c == nil {
				continue
			}
			if c.IsTime() {
				if t, err := c.GetTime(false); err == nil {
					rec[i] = t.Format(time.RFC3339)
					continue
				}
			}
			rec[i] = c.String()
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process Excel rows: %w", err)
	}
	return records, nil
}

func parseRecords(records [][]string) ([]importRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	cols, err := parseHeader(records[0])
	if err != nil {
		return nil, err
	}

	var rows []importRow
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row, err := parseRow(cols, rec, i+2)
		row.Err = err
		rows = append(rows, row)
	}
	return rows, nil
}

func parseHeader(header []string) (columnIndex, error) {
	cols := columnIndex{productID: -1, sku: -1, name: -1, quantity: -1, saleRef: -1, saleDate: -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch headerAliases[key] {
		case "product_id":
			cols.productID = i
		case "sku":
			cols.sku = i
		case "name":
			cols.name = i
		case "quantity":
			cols.quantity = i
		case "sale_ref":
			cols.saleRef = i
		case "sale_date":
			cols.saleDate = i
		}
	}
	if cols.quantity < 0 {
		return cols, fmt.Errorf("header must contain a quantity column")
	}
	if cols.productID < 0 && cols.sku < 0 && cols.name < 0 {
		return cols, fmt.Errorf("header must contain product_id, sku or name")
	}
	return cols, nil
}

func parseRow(cols columnIndex, rec []string, rowNum int) (importRow, error) {
	get := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := importRow{Row: rowNum, SaleRef: get(cols.saleRef)}

	qty, err := parseQuantity(get(cols.quantity))
	if err != nil {
		return row, err
	}
	row.Line.Quantity = qty

	if s := get(cols.productID); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return row, fmt.Errorf("invalid product_id %q", s)
		}
		row.Line.ProductID = &id
	}
	row.Line.SKU = get(cols.sku)
	row.Name = get(cols.name)
	if row.Line.ProductID == nil && row.Line.SKU == "" && row.Name == "" {
		return row, fmt.Errorf("product_id, sku or name is required")
	}

	if s := get(cols.saleDate); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return row, err
		}
		row.SaleDate = &t
	}
	return row, nil
}

// parseQuantity accepts whole numbers, including spreadsheet floats like "3.0"
func parseQuantity(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("quantity is required")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("quantity must be at least 1")
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	if f < 1 {
		return 0, fmt.Errorf("quantity must be at least 1")
	}
	return int(f), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid sale_date %q", s)
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// groupRows folds rows sharing a sale_ref into one sale, in order of first
// appearance. Rows without a ref become single-line sales. The second
// result lists the file rows behind each sale.
func groupRows(rows []importRow, actor string) ([]domain.CreateSaleRequest, [][]int) {
	var sales []domain.CreateSaleRequest
	var sourceRows [][]int
	byRef := make(map[string]int)

	for _, row := range rows {
		if row.SaleRef != "" {
			if idx, ok := byRef[row.SaleRef]; ok {
				sales[idx].Items = append(sales[idx].Items, row.Line)
				sourceRows[idx] = append(sourceRows[idx], row.Row)
				if sales[idx].SaleDate == nil {
					sales[idx].SaleDate = row.SaleDate
				}
				continue
			}
			byRef[row.SaleRef] = len(sales)
		}
		sales = append(sales, domain.CreateSaleRequest{
			Items:    []domain.SaleLineRequest{row.Line},
			SaleDate: row.SaleDate,
			Source:   domain.SourceBulkImport,
			Actor:    actor,
		})
		sourceRows = append(sourceRows, []int{row.Row})
	}
	return sales, sourceRows
}

// splitRows separates usable rows from failed ones. Every row of a
// sale_ref group with a failed row is dropped too, so a receipt is
// imported whole or not at all.
func splitRows(rows []importRow) ([]importRow, []domain.RowError) {
	broken := make(map[string]bool)
	for _, r := range rows {
		if r.Err != nil && r.SaleRef != "" {
			broken[r.SaleRef] = true
		}
	}

	var ok []importRow
	var rowErrs []domain.RowError
	for _, r := range rows {
		switch {
		case r.Err != nil:
			rowErrs = append(rowErrs, domain.RowError{Row: r.Row, Message: r.Err.Error()})
		case broken[r.SaleRef]:
			rowErrs = append(rowErrs, domain.RowError{
				Row:     r.Row,
				Message: fmt.Sprintf("sale_ref %q skipped: another row of the sale is invalid", r.SaleRef),
			})
		default:
			ok = append(ok, r)
		}
	}
	return ok, rowErrs
}
