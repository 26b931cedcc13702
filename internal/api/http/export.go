package apihttp

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
	"github.com/Moori-Sense/Backend/internal/lines"
	"github.com/Moori-Sense/Backend/internal/tension/application"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

// ExportAlertsXLSXHandler serves the alert history workbook.
type ExportAlertsXLSXHandler struct {
	manager *alertapp.Manager
}

// NewExportAlertsXLSXHandler constructs the handler.
func NewExportAlertsXLSXHandler(manager *alertapp.Manager) *ExportAlertsXLSXHandler {
	return &ExportAlertsXLSXHandler{manager: manager}
}

// ServeHTTP handles GET /api/v1/exports/alerts.xlsx.
func (h *ExportAlertsXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.manager == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	list, err := h.manager.History(r.Context(), from, to)
	if err != nil {
		http.Error(w, "alert query error", http.StatusInternalServerError)
		return
	}

	payload, err := BuildAlertsXLSX(list, from, to)
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=alerts.xlsx")
	_, _ = w.Write(payload)
}

// BuildAlertsXLSX renders the alert history workbook.
func BuildAlertsXLSX(list []alerts.Alert, from, to time.Time) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alerts"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Alert History")
	_ = f.SetCellValue(sheet, "A2", "Window")
	_ = f.SetCellValue(sheet, "B2", from.Format(timeLayout)+" .. "+to.Format(timeLayout))

	headers := []string{"ID", "Line", "Type", "Severity", "Message", "Last Value", "Resolved", "Resolved At", "Created At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, alert := range list {
		row := i + 5
		resolvedAt := ""
		if !alert.ResolvedAt.IsZero() {
			resolvedAt = alert.ResolvedAt.Format(timeLayout)
		}
		values := []any{
			alert.ID,
			alert.LineID,
			alert.Type,
			alert.Severity,
			alert.Message,
			alert.LastValue,
			alert.Resolved,
			resolvedAt,
			alert.CreatedAt.Format(timeLayout),
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LineReportPDFHandler serves the per-line tension report.
type LineReportPDFHandler struct {
	registry *lines.Registry
	query    *application.QueryService
}

// NewLineReportPDFHandler constructs the handler.
func NewLineReportPDFHandler(registry *lines.Registry, query *application.QueryService) *LineReportPDFHandler {
	return &LineReportPDFHandler{registry: registry, query: query}
}

// ServeHTTP handles GET /api/v1/exports/lines/{id}/report.pdf.
func (h *LineReportPDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.registry == nil || h.query == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	lineID, ok := reportLineID(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	line, err := h.registry.Get(lineID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	from, to, err := chartWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	series, err := h.query.Series(r.Context(), lineID, from, to)
	if err != nil {
		http.Error(w, "chart query error", http.StatusInternalServerError)
		return
	}

	payload, err := BuildLineReportPDF(line, series)
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+lineID+"-report.pdf")
	_, _ = w.Write(payload)
}

func reportLineID(path string) (string, bool) {
	const prefix = "/api/v1/exports/lines/"
	const suffix = "/report.pdf"
	if len(path) <= len(prefix)+len(suffix) {
		return "", false
	}
	if path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		return "", false
	}
	return path[len(prefix) : len(path)-len(suffix)], true
}

// BuildLineReportPDF renders a tension summary report for one line.
func BuildLineReportPDF(line lines.Line, series tension.ChartSeries) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Mooring Line Tension Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Line: %s (%s)", line.LineID, line.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Side / Type: %s %s", line.Side, line.LineType))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Reference Tension (kN): %.2f", line.ReferenceTension))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Max Tension (kN): %.2f", line.MaxTension))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Remaining Lifespan: %.1f%%", line.RemainingLifespanPct))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s .. %s", series.From.Format(timeLayout), series.To.Format(timeLayout)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", series.Stats.Count))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Min / Mean / Max (kN): %.3f / %.3f / %.3f",
		series.Stats.MinTension, series.Stats.MeanTension, series.Stats.MaxTension))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts in window: %d", series.Stats.AlertCount))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Tension (kN)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	// Cap table length so dense windows still yield a readable report.
	points := series.Points
	if len(points) > 50 {
		points = tension.Downsample(points, 50)
	}
	for _, point := range points {
		pdf.CellFormat(60, 6, point.Timestamp.Format(timeLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", point.TensionValue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, point.Status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
