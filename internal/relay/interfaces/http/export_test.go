package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"relaycloud/internal/relay/infrastructure/docstore"
	"relaycloud/internal/store/memory"
)

func newExportFixture(t *testing.T) *ExportHandler {
	t.Helper()
	docs := memory.New()
	repo, err := docstore.New(docs, "user-1")
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if err := repo.Create(context.Background(), 1, "GARDEN PUMP"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(context.Background(), 2, "BEDROOM FAN"); err != nil {
		t.Fatalf("create: %v", err)
	}

	handler, err := NewExportHandler(docs)
	if err != nil {
		t.Fatalf("new export handler: %v", err)
	}
	return handler
}

func TestExport_Unauthenticated(t *testing.T) {
	handler := newExportFixture(t)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/exports/relays.pdf", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestExport_PDF(t *testing.T) {
	handler := newExportFixture(t)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/exports/relays.pdf", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected a PDF payload")
	}
}

func TestExport_XLSX(t *testing.T) {
	handler := newExportFixture(t)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/exports/relays.xlsx", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	// xlsx is a zip container.
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("PK")) {
		t.Fatal("expected a spreadsheet payload")
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	handler := newExportFixture(t)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/exports/relays.csv", ""))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
