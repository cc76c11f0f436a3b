package quotes

import (
	"html/template"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var frCA = message.NewPrinter(language.CanadianFrench)

// FormatMoney renders an amount the way Québec invoices print it:
// locale grouping, comma decimals, trailing dollar sign.
func FormatMoney(v float64) string {
	return frCA.Sprintf("%.2f", v) + " $"
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

var quoteTemplate = template.Must(template.New("quote").Funcs(template.FuncMap{
	"money": FormatMoney,
	"date":  formatDate,
}).Parse(`<!DOCTYPE html>
<html lang="fr-CA">
<head>
<meta charset="utf-8">
<title>Devis {{.DocNumber}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; border-bottom: 2px solid #1a5276; padding-bottom: .3em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #bbb; padding: .4em .6em; text-align: left; }
th { background: #eaf2f8; }
td.num, th.num { text-align: right; }
.totals td { border: none; }
.totals tr.grand td { font-weight: bold; border-top: 2px solid #1a5276; }
.meta { margin: .2em 0; }
.rebate { color: #196f3d; }
</style>
</head>
<body>
<h1>Devis {{.DocNumber}}</h1>
<p class="meta">Client : {{.ClientName}}</p>
{{if .CompanyName}}<p class="meta">Entreprise : {{.CompanyName}}</p>{{end}}
<p class="meta">Responsable : {{.EmployeeName}}</p>
<p class="meta">Date : {{date .QuoteDate}} — Échéance : {{date .DueDate}}</p>
<p class="meta">Statut : {{.Status}}</p>
{{if .Notes}}<p class="meta">Notes : {{.Notes}}</p>{{end}}

{{if .Lines}}
<table>
<thead>
<tr><th>#</th><th>Description</th><th class="num">Quantité</th><th>Unité</th><th class="num">Prix unitaire</th><th class="num">Montant</th></tr>
</thead>
<tbody>
{{range .Lines}}
<tr>
<td>{{.LineNo}}</td>
<td>{{.Description}}</td>
<td class="num">{{.Quantity}}</td>
<td>{{.Unit}}</td>
<td class="num">{{money .UnitPrice}}</td>
<td class="num">{{money .Amount}}</td>
</tr>
{{end}}
</tbody>
</table>
{{else}}
<p><em>Estimation sans détail de lignes.</em></p>
{{end}}

<table class="totals" style="width: 45%; margin-left: auto;">
<tr><td>Sous-total</td><td class="num">{{money .Totals.Subtotal}}</td></tr>
<tr><td>TPS ({{.Totals.FederalRate}} %)</td><td class="num">{{money .Totals.FederalTax}}</td></tr>
{{if gt .Totals.FederalRebate 0.0}}<tr class="rebate"><td>Remboursement TPS habitation neuve</td><td class="num">−{{money .Totals.FederalRebate}}</td></tr>{{end}}
<tr><td>TVQ ({{.Totals.ProvincialRate}} %)</td><td class="num">{{money .Totals.ProvincialTax}}</td></tr>
<tr class="grand"><td>Total</td><td class="num">{{money .Totals.GrandTotal}}</td></tr>
</table>

<p style="margin-top:2em; font-size:.8em; color:#666;">Généré le {{date .Generated}}</p>
</body>
</html>
`))

type exportModel struct {
	*QuoteWithDetails
	Generated time.Time
}

// RenderHTML writes the printable HTML document for a quote.
func RenderHTML(w io.Writer, details *QuoteWithDetails) error {
	return quoteTemplate.Execute(w, exportModel{QuoteWithDetails: details, Generated: time.Now()})
}
