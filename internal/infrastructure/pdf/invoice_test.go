package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/saas/internal/domain/invoicing"
)

func newIssuedInvoice(t *testing.T) *invoicing.Invoice {
	t.Helper()
	line, err := invoicing.NewLine(nil, "Consulting <hours>", decimal.NewFromInt(2), decimal.NewFromInt(50), decimal.RequireFromString("0.18"))
	require.NoError(t, err)
	inv, err := invoicing.NewDraft(uuid.New(), invoicing.DraftInput{
		Series:   "F001",
		Currency: "PEN",
		Customer: invoicing.Customer{
			Name:           "Comercial Andina SAC",
			DocumentType:   invoicing.DocRUC,
			DocumentNumber: "20123456789",
		},
		Lines: []invoicing.Line{line},
		Notes: "Thank you",
	})
	require.NoError(t, err)
	require.NoError(t, inv.Issue(42, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	return inv
}

func TestInvoiceRenderer_RenderHTML(t *testing.T) {
	r := NewInvoiceRenderer(nil, nil)
	inv := newIssuedInvoice(t)

	html, err := r.RenderHTML(inv, Issuer{Name: "Acme SAC", TaxID: "20999999991"})
	require.NoError(t, err)

	assert.Contains(t, html, "F001-00000042")
	assert.Contains(t, html, "RUC 20999999991")
	assert.Contains(t, html, "RUC 20123456789")
	assert.Contains(t, html, "Consulting &lt;hours&gt;")
	assert.Contains(t, html, "PEN 118.00")
	assert.Contains(t, html, "2024-05-01")
	assert.Contains(t, html, `src="data:image/png;base64,`)
	assert.NotContains(t, html, "DRAFT")
}

func TestInvoiceRenderer_DraftHasNoQRCode(t *testing.T) {
	line, err := invoicing.NewLine(nil, "Item", decimal.NewFromInt(1), decimal.NewFromInt(10), decimal.Zero)
	require.NoError(t, err)
	inv, err := invoicing.NewDraft(uuid.New(), invoicing.DraftInput{Series: "B001", Currency: "USD", Lines: []invoicing.Line{line}})
	require.NoError(t, err)

	html, err := NewInvoiceRenderer(nil, nil).RenderHTML(inv, Issuer{Name: "Acme"})
	require.NoError(t, err)
	assert.Contains(t, html, "B001-DRAFT")
	assert.Contains(t, html, "DRAFT")
	assert.NotContains(t, html, "data:image/png")
}

func TestInvoiceRenderer_PDFDisabled(t *testing.T) {
	_, err := NewInvoiceRenderer(nil, nil).RenderPDF(context.Background(), newIssuedInvoice(t), Issuer{})
	assert.ErrorIs(t, err, ErrPDFDisabled)
}

func TestQRDataURI(t *testing.T) {
	uri, err := QRDataURI("20999999991|F001|00000042|18.00|118.00|2024-05-01|RUC|20123456789", 200)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)

	_, err = QRDataURI("", 100)
	assert.Error(t, err)
}

func TestChromeRenderer_RejectsEmptyHTML(t *testing.T) {
	r := NewChromeRenderer(ChromeConfig{RemoteURL: "ws://127.0.0.1:1/devtools/browser/x"}, nil)
	defer r.Close()
	_, err := r.RenderPDF(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyHTML)
}

func TestMMToInches(t *testing.T) {
	assert.InDelta(t, 8.27, mmToInches(a4WidthMM), 0.01)
	assert.InDelta(t, 11.69, mmToInches(a4HeightMM), 0.01)
}
