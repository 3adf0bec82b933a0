package report

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

// Letterhead is the store identity printed on every document. TaxRate is the
// percentage included in printed bill totals.
type Letterhead struct {
	StoreName      string
	Address        string
	Phone          string
	Email          string
	CurrencySymbol string
	LogoURL        string
	TaxRate        decimal.Decimal
}

// BillLine is one printed sale line.
type BillLine struct {
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// BillDocument is a customer-facing sale bill.
type BillDocument struct {
	Store       Letterhead
	BillNumber  string
	Date        time.Time
	Customer    string
	PaymentType string
	Lines       []BillLine
	Total       decimal.Decimal
}

// Tax is the tax contained in the total at the store's tax rate.
func (d BillDocument) Tax() decimal.Decimal {
	if !d.Store.TaxRate.IsPositive() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	net := d.Total.Mul(hundred).Div(hundred.Add(d.Store.TaxRate))
	return d.Total.Sub(net)
}

// SummaryDay is one row of the sales-by-day table.
type SummaryDay struct {
	Day   time.Time
	Count int
	Total decimal.Decimal
}

// SummaryDocument is a period report.
type SummaryDocument struct {
	Store       Letterhead
	From        time.Time
	To          time.Time
	Sales       decimal.Decimal
	Purchases   decimal.Decimal
	Expenses    decimal.Decimal
	NetProfit   decimal.Decimal
	SalesByDay  []SummaryDay
	GeneratedAt time.Time
}

// HTMLConverter turns HTML into PDF bytes. *Client satisfies it.
type HTMLConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Renderer fills the document templates and converts them to PDF.
type Renderer struct {
	converter HTMLConverter
}

// NewRenderer constructs Renderer.
func NewRenderer(converter HTMLConverter) *Renderer {
	return &Renderer{converter: converter}
}

// Bill renders a sale bill to PDF.
func (r *Renderer) Bill(ctx context.Context, doc BillDocument) ([]byte, error) {
	html, err := BillHTML(doc)
	if err != nil {
		return nil, err
	}
	return r.converter.RenderHTML(ctx, html)
}

// Summary renders a period summary to PDF.
func (r *Renderer) Summary(ctx context.Context, doc SummaryDocument) ([]byte, error) {
	html, err := SummaryHTML(doc)
	if err != nil {
		return nil, err
	}
	return r.converter.RenderHTML(ctx, html)
}

// BillHTML renders the bill template.
func BillHTML(doc BillDocument) (string, error) {
	return execute("bill", doc)
}

// SummaryHTML renders the summary template.
func SummaryHTML(doc SummaryDocument) (string, error) {
	return execute("summary", doc)
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var templates = template.Must(template.New("documents").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"qty":   func(d decimal.Decimal) string { return d.String() },
	"date":  func(t time.Time) string { return t.Format("02 Jan 2006") },
	"inc":   func(i int) int { return i + 1 },
}).Parse(documentTemplates))

const documentTemplates = `
{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;font-size:12px;color:#222;margin:24px}
h1{font-size:20px;margin:0}
table{width:100%;border-collapse:collapse;margin-top:16px}
th,td{padding:6px;border-bottom:1px solid #ddd;text-align:left}
td.num,th.num{text-align:right}
.muted{color:#666}
.totals td{font-weight:bold;border-bottom:none}
</style></head><body>{{end}}

{{define "letterhead"}}
<div>
{{if .LogoURL}}<img src="{{.LogoURL}}" alt="" height="48">{{end}}
<h1>{{.StoreName}}</h1>
{{if .Address}}<div class="muted">{{.Address}}</div>{{end}}
{{if or .Phone .Email}}<div class="muted">{{.Phone}}{{if and .Phone .Email}} · {{end}}{{.Email}}</div>{{end}}
</div>{{end}}

{{define "bill"}}{{template "head" .BillNumber}}
{{template "letterhead" .Store}}
<p><strong>Bill {{.BillNumber}}</strong><br>
<span class="muted">{{date .Date}} · {{.PaymentType}}{{if .Customer}} · {{.Customer}}{{end}}</span></p>
<table>
<tr><th>#</th><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Amount</th></tr>
{{range $i, $l := .Lines}}<tr><td>{{inc $i}}</td><td>{{$l.Name}}</td><td class="num">{{qty $l.Quantity}}</td><td class="num">{{$.Store.CurrencySymbol}}{{money $l.UnitPrice}}</td><td class="num">{{$.Store.CurrencySymbol}}{{money $l.LineTotal}}</td></tr>
{{end}}
{{if .Store.TaxRate.IsPositive}}<tr class="totals"><td colspan="4" class="num">Tax included ({{qty .Store.TaxRate}}%)</td><td class="num">{{.Store.CurrencySymbol}}{{money .Tax}}</td></tr>{{end}}
<tr class="totals"><td colspan="4" class="num">Total</td><td class="num">{{.Store.CurrencySymbol}}{{money .Total}}</td></tr>
</table>
<p class="muted">Thank you for your purchase.</p>
</body></html>{{end}}

{{define "summary"}}{{template "head" "Summary"}}
{{template "letterhead" .Store}}
<p><strong>Summary {{date .From}} to {{date .To}}</strong></p>
<table>
<tr><td>Sales</td><td class="num">{{.Store.CurrencySymbol}}{{money .Sales}}</td></tr>
<tr><td>Purchases</td><td class="num">{{.Store.CurrencySymbol}}{{money .Purchases}}</td></tr>
<tr><td>Expenses</td><td class="num">{{.Store.CurrencySymbol}}{{money .Expenses}}</td></tr>
<tr class="totals"><td>Net profit</td><td class="num">{{.Store.CurrencySymbol}}{{money .NetProfit}}</td></tr>
</table>
{{if .SalesByDay}}<table>
<tr><th>Day</th><th class="num">Sales</th><th class="num">Amount</th></tr>
{{range .SalesByDay}}<tr><td>{{date .Day}}</td><td class="num">{{.Count}}</td><td class="num">{{$.Store.CurrencySymbol}}{{money .Total}}</td></tr>
{{end}}</table>{{end}}
<p class="muted">Generated {{.GeneratedAt.Format "02 Jan 2006 15:04"}}</p>
</body></html>{{end}}
`
