// Package reporting renders the closed-session journal as an xlsx workbook
// for download from the dashboard.
package reporting

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/eddiefleurent/elastic_grid/internal/journal"
)

const sessionsSheet = "Closed Sessions"

var headers = []string{"Closed At (UTC)", "Side", "Session", "Reason", "Layers", "Volume", "Profit"}

type reportStyles struct {
	header int
	totals int
}

// SessionWorkbook builds a single-sheet workbook from journal records, in the
// order given (the journal serves them newest first), followed by a totals
// row. The caller owns the returned file and must Close it.
func SessionWorkbook(records []journal.SessionRecord) (*excelize.File, error) {
	fx := excelize.NewFile()
	fx.SetSheetName(fx.GetSheetName(0), sessionsSheet)

	styles, err := newReportStyles(fx)
	if err != nil {
		fx.Close()
		return nil, fmt.Errorf("creating report styles: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sessionsSheet, cell, h)
		fx.SetCellStyle(sessionsSheet, cell, cell, styles.header)
	}

	totalVolume := decimal.Zero
	totalProfit := decimal.Zero

	row := 2
	for _, rec := range records {
		values := []interface{}{
			rec.ClosedAt.UTC().Format("2006-01-02 15:04:05"),
			rec.Side,
			rec.SessionID,
			rec.Reason,
			rec.Layers,
			rec.Volume,
			rec.Profit,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			fx.SetCellValue(sessionsSheet, cell, v)
		}
		totalVolume = totalVolume.Add(decimal.NewFromFloat(rec.Volume))
		totalProfit = totalProfit.Add(decimal.NewFromFloat(rec.Profit))
		row++
	}

	labelCell, _ := excelize.CoordinatesToCellName(1, row)
	fx.SetCellValue(sessionsSheet, labelCell, "TOTAL")
	countCell, _ := excelize.CoordinatesToCellName(5, row)
	fx.SetCellValue(sessionsSheet, countCell, len(records))
	volumeCell, _ := excelize.CoordinatesToCellName(6, row)
	volume, _ := totalVolume.Float64()
	fx.SetCellValue(sessionsSheet, volumeCell, volume)
	profitCell, _ := excelize.CoordinatesToCellName(7, row)
	profit, _ := totalProfit.Float64()
	fx.SetCellValue(sessionsSheet, profitCell, profit)
	lastCell, _ := excelize.CoordinatesToCellName(len(headers), row)
	fx.SetCellStyle(sessionsSheet, labelCell, lastCell, styles.totals)

	fx.SetColWidth(sessionsSheet, "A", "A", 20) // Closed At
	fx.SetColWidth(sessionsSheet, "B", "B", 8)  // Side
	fx.SetColWidth(sessionsSheet, "C", "C", 16) // Session
	fx.SetColWidth(sessionsSheet, "D", "D", 12) // Reason
	fx.SetColWidth(sessionsSheet, "E", "G", 10) // Layers / Volume / Profit

	return fx, nil
}

func newReportStyles(fx *excelize.File) (reportStyles, error) {
	var styles reportStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.totals, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Border: []excelize.Border{
			{Type: "top", Color: "000000", Style: 1},
		},
	})
	return styles, err
}
