package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"relaycloud/internal/auth"
	"relaycloud/internal/observability/metrics"
	relay "relaycloud/internal/relay/domain"
	"relaycloud/internal/relay/infrastructure/docstore"
	"relaycloud/internal/store"
)

// ExportHandler serves the device inventory as a downloadable report.
type ExportHandler struct {
	docs store.Store
}

// NewExportHandler constructs an export handler.
func NewExportHandler(docs store.Store) (*ExportHandler, error) {
	if docs == nil {
		return nil, errors.New("export handler: nil store")
	}
	return &ExportHandler{docs: docs}, nil
}

// ServeHTTP handles GET /api/v1/exports/relays.{xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	repo, err := docstore.New(h.docs, identity.UserID)
	if err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	collection, err := repo.FetchAll(r.Context())
	if err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	switch r.URL.Path {
	case "/api/v1/exports/relays.xlsx":
		metrics.ObserveExport("xlsx")
		payload, err := BuildInventoryXLSX(collection)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="relays.xlsx"`)
		_, _ = w.Write(payload)
	case "/api/v1/exports/relays.pdf":
		metrics.ObserveExport("pdf")
		payload, err := BuildInventoryPDF(collection)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="relays.pdf"`)
		_, _ = w.Write(payload)
	default:
		http.NotFound(w, r)
	}
}

func sortedRelays(collection relay.Collection) []relay.Relay {
	relays := make([]relay.Relay, 0, len(collection))
	for _, record := range collection {
		relays = append(relays, record)
	}
	sort.Slice(relays, func(i, j int) bool { return relays[i].ID < relays[j].ID })
	return relays
}

// BuildInventoryPDF renders the device inventory as a PDF.
func BuildInventoryPDF(collection relay.Collection) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Inventory")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Devices: %d", len(collection)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(90, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "State", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range sortedRelays(collection) {
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", record.ID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 6, record.Device, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, stateWord(record.State), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInventoryXLSX renders the device inventory as a spreadsheet.
func BuildInventoryXLSX(collection relay.Collection) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "devices"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "ID")
	_ = f.SetCellValue(sheet, "B1", "Device")
	_ = f.SetCellValue(sheet, "C1", "State")
	for i, record := range sortedRelays(collection) {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), record.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), record.Device)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), stateWord(record.State))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stateWord(state bool) string {
	if state {
		return "ON"
	}
	return "OFF"
}
