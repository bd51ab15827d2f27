// internal/handlers/export.go
package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/core/services"
)

// maxExportRange bounds a single export request
const maxExportRange = 366 * 24 * time.Hour

var saleExportHeaders = []string{
	"Sale ID", "Sale Date", "Source", "Created By",
	"Product ID", "SKU", "Product Name", "Quantity", "Unit Price", "Subtotal", "Sale Total",
}

// ExportHandler writes sales as spreadsheets
type ExportHandler struct {
	sales  ports.SaleService
	logger *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(sales ports.SaleService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		sales:  sales,
		logger: logger.With(slog.String("handler", "export")),
	}
}

// ExportSales handles GET /api/v1/export/sales.xlsx?from=&to=. Without a
// range the last 30 days are exported.
func (h *ExportHandler) ExportSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, hasFrom, err := queryTime(r, "from")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	to, hasTo, err := queryTime(r, "to")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if !hasTo {
		to = time.Now().UTC()
	}
	if !hasFrom {
		from = to.AddDate(0, 0, -30)
	}
	if to.Sub(from) > maxExportRange {
		respondError(w, h.logger, http.StatusBadRequest, "export range cannot exceed one year")
		return
	}

	sales, err := h.sales.SalesBetween(ctx, from, to)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to retrieve sales")
		return
	}

	data, err := buildSalesWorkbook(sales)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate Excel file", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("sales_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write Excel response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "sales export completed",
		slog.Int("sales", len(sales)),
		slog.String("filename", filename))
}

// buildSalesWorkbook writes one row per sale item plus a summary sheet
func buildSalesWorkbook(sales []*domain.Sale) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Sales")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}
	addHeaderRow(sheet, saleExportHeaders)

	for _, sale := range sales {
		for _, item := range sale.Items {
			row := sheet.AddRow()
			row.AddCell().SetInt64(sale.ID)
			row.AddCell().SetDateTime(sale.SaleDate)
			row.AddCell().SetString(string(sale.Source))
			row.AddCell().SetString(sale.CreatedBy)
			row.AddCell().SetInt64(item.ProductID)
			row.AddCell().SetString(item.ProductSKU)
			row.AddCell().SetString(item.ProductName)
			row.AddCell().SetInt(item.Quantity)
			row.AddCell().SetString(item.UnitPrice.StringFixed(2))
			row.AddCell().SetString(item.Subtotal.StringFixed(2))
			row.AddCell().SetString(sale.TotalAmount.StringFixed(2))
		}
	}
	sheet.SetColWidth(1, len(saleExportHeaders), 15)

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}
	totals := services.Summarize(sales)
	addHeaderRow(summary, []string{"Sales", "Units Sold", "Revenue", "Average Sale"})
	row := summary.AddRow()
	row.AddCell().SetInt(totals.SaleCount)
	row.AddCell().SetInt(totals.UnitsSold)
	row.AddCell().SetString(totals.Revenue.StringFixed(2))
	row.AddCell().SetString(totals.Average.StringFixed(2))
	summary.SetColWidth(1, 4, 15)

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}
	return buffer.Bytes(), nil
}

func addHeaderRow(sheet *xlsx.Sheet, headers []string) {
	row := sheet.AddRow()
	for _, header := range headers {
		cell := row.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}
}
