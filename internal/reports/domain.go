package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// TrendDays is the length of the dashboard sales trend.
const TrendDays = 7

// RecentLimit bounds the dashboard activity feed.
const RecentLimit = 10

// MaxSummaryDays bounds the range of a summary report.
const MaxSummaryDays = 366

// Dashboard is the landing-page snapshot for one day.
type Dashboard struct {
	Date           shared.Date     `json:"date"`
	SalesTotal     decimal.Decimal `json:"sales_total"`
	SalesCount     int             `json:"sales_count"`
	PurchasesTotal decimal.Decimal `json:"purchases_total"`
	ExpensesTotal  decimal.Decimal `json:"expenses_total"`
	Profit         decimal.Decimal `json:"profit"`
	LowStockCount  int             `json:"low_stock_count"`
	SalesTrend     []DaySales      `json:"sales_trend"`
	RecentActivity []Activity      `json:"recent_activity"`
}

// DaySales aggregates the sales of one calendar day.
type DaySales struct {
	Date  shared.Date     `json:"date"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Activity is one recent sale or purchase.
type Activity struct {
	Kind   string          `json:"kind"`
	ID     uuid.UUID       `json:"id"`
	Number string          `json:"number"`
	At     time.Time       `json:"at"`
	Amount decimal.Decimal `json:"amount"`
	Party  *string         `json:"party,omitempty"`
}

// Summary is a period report. To is inclusive.
type Summary struct {
	From           shared.Date     `json:"from"`
	To             shared.Date     `json:"to"`
	SalesTotal     decimal.Decimal `json:"sales_total"`
	SalesCount     int             `json:"sales_count"`
	PurchasesTotal decimal.Decimal `json:"purchases_total"`
	PurchaseCount  int             `json:"purchase_count"`
	ExpensesTotal  decimal.Decimal `json:"expenses_total"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	SalesByDay     []DaySales      `json:"sales_by_day"`
}

// Period is a half-open [From, To) interval of UTC days.
type Period struct {
	From time.Time
	To   time.Time
}
