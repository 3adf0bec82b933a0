package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/storekeep/storekeep/report"
)

// WriteSummaryCSV serialises a summary report: the headline metrics followed
// by the sales-by-day table.
func WriteSummaryCSV(w io.Writer, summary Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	records := [][]string{
		{"Metric", "Value"},
		{"From", summary.From.String()},
		{"To", summary.To.String()},
		{"Sales", summary.SalesTotal.StringFixed(2)},
		{"Sales Count", strconv.Itoa(summary.SalesCount)},
		{"Purchases", summary.PurchasesTotal.StringFixed(2)},
		{"Purchase Count", strconv.Itoa(summary.PurchaseCount)},
		{"Expenses", summary.ExpensesTotal.StringFixed(2)},
		{"Net Profit", summary.NetProfit.StringFixed(2)},
		{},
		{"Day", "Bills", "Sales"},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	for _, day := range summary.SalesByDay {
		if err := writer.Write([]string{
			day.Date.String(),
			strconv.Itoa(day.Count),
			day.Total.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SummaryDocument maps a summary onto the printable report.
func SummaryDocument(store report.Letterhead, summary Summary, generatedAt time.Time) report.SummaryDocument {
	doc := report.SummaryDocument{
		Store:       store,
		From:        summary.From.Time,
		To:          summary.To.Time,
		Sales:       summary.SalesTotal,
		Purchases:   summary.PurchasesTotal,
		Expenses:    summary.ExpensesTotal,
		NetProfit:   summary.NetProfit,
		SalesByDay:  make([]report.SummaryDay, 0, len(summary.SalesByDay)),
		GeneratedAt: generatedAt,
	}
	for _, day := range summary.SalesByDay {
		doc.SalesByDay = append(doc.SalesByDay, report.SummaryDay{Day: day.Date.Time, Count: day.Count, Total: day.Total})
	}
	return doc
}
