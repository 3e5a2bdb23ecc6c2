package export

import (
	"fmt"
	"io"
	"time"

	"shareit/internal/models"

	"github.com/xuri/excelize/v2"
)

const timeLayout = "2006-01-02 15:04"

var headers = []string{"ID", "Вещь", "Арендатор", "Начало", "Окончание", "Статус"}

// Статусы подсвечиваются так же, как ячейки расписания
var statusColors = map[models.Status]string{
	models.StatusWaiting:  "#FFEB9C",
	models.StatusApproved: "#C6EFCE",
	models.StatusRejected: "#FFC7CE",
}

// WriteBookings пишет брони в xlsx-книгу с одним листом
func WriteBookings(w io.Writer, sheetName string, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Bookings"
	}
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle)
	_ = f.SetColWidth(sheetName, "A", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "E", 20)
	_ = f.SetColWidth(sheetName, "F", "F", 14)

	styles := make(map[models.Status]int, len(statusColors))
	for status, color := range statusColors {
		style, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return fmt.Errorf("failed to create status style: %w", err)
		}
		styles[status] = style
	}

	for i, b := range bookings {
		row := i + 2
		values := []interface{}{
			b.ID,
			b.ItemID,
			b.BookerID,
			b.Start.UTC().Format(timeLayout),
			b.End.UTC().Format(timeLayout),
			b.Status.String(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		statusCell, _ := excelize.CoordinatesToCellName(len(headers), row)
		_ = f.SetCellStyle(sheetName, statusCell, statusCell, styles[b.Status])
	}

	_ = f.SetDocProps(&excelize.DocProperties{
		Creator: "shareit",
		Created: time.Now().UTC().Format(time.RFC3339),
	})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
