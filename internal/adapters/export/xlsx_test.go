package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/kambashop/internal/domain"
)

func TestWriteOrders(t *testing.T) {
	orders := []domain.Order{
		{OrderNumber: "KMB-2026-000001", IntentID: "pi_1", Status: domain.PaymentSucceeded, AmountMinor: 13990, Currency: "EUR", Email: "ana@example.com", ConversionSent: true, CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{OrderNumber: "KMB-2026-000002", IntentID: "pi_2", Status: domain.PaymentProcessing, AmountMinor: 5000, Currency: "EUR"},
	}
	var buf bytes.Buffer
	require.NoError(t, XLSX{}.WriteOrders(&buf, orders))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Orden", v)
	v, _ = f.GetCellValue(sheet, "A2")
	assert.Equal(t, "KMB-2026-000001", v)
	v, _ = f.GetCellValue(sheet, "B2")
	assert.Equal(t, "2026-03-01 10:30", v)
	v, _ = f.GetCellValue(sheet, "E2")
	assert.Equal(t, "139.9", v)
	v, _ = f.GetCellValue(sheet, "K2")
	assert.Equal(t, "sí", v)
	v, _ = f.GetCellValue(sheet, "C3")
	assert.Equal(t, "processing", v)
}
