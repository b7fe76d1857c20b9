package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/phenrril/kambashop/internal/domain"
)

const sheet = "Ordenes"

var headers = []string{"Orden", "Fecha", "Estado", "Intento", "Total", "Moneda", "Cliente", "Email", "Teléfono", "Dirección", "Conversión enviada"}

// XLSX escribe el listado de órdenes como planilla.
type XLSX struct{}

func (XLSX) WriteOrders(w io.Writer, orders []domain.Order) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}
	for r, o := range orders {
		row := []interface{}{
			o.OrderNumber,
			o.CreatedAt.Format("2006-01-02 15:04"),
			string(o.Status),
			o.IntentID,
			o.Amount().InexactFloat64(),
			o.Currency,
			o.Name,
			o.Email,
			o.Phone,
			o.Address,
			yesNo(o.ConversionSent),
		}
		start, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, start, &row); err != nil {
			return fmt.Errorf("fila %d: %w", r+2, err)
		}
	}
	_ = f.SetColWidth(sheet, "A", "D", 20)
	_ = f.SetColWidth(sheet, "G", "J", 24)
	return f.Write(w)
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}
