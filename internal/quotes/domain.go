package quotes

import (
	"time"
)

// QuoteStatus tracks the lifecycle of a quote document.
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "DRAFT"
	QuoteStatusValidated QuoteStatus = "VALIDATED"
	QuoteStatusSent      QuoteStatus = "SENT"
	QuoteStatusApproved  QuoteStatus = "APPROVED"
	QuoteStatusCompleted QuoteStatus = "COMPLETED"
	QuoteStatusCancelled QuoteStatus = "CANCELLED"
	QuoteStatusExpired   QuoteStatus = "EXPIRED"
)

type QuotePriority string

const (
	QuotePriorityLow    QuotePriority = "LOW"
	QuotePriorityNormal QuotePriority = "NORMAL"
	QuotePriorityHigh   QuotePriority = "HIGH"
	QuotePriorityUrgent QuotePriority = "URGENT"
)

// ClientType drives the Québec residential-construction rebate rules.
type ClientType string

const (
	ClientTypeIndividual ClientType = "INDIVIDUAL"
	ClientTypeCompany    ClientType = "COMPANY"
	ClientTypePublicBody ClientType = "PUBLIC_BODY"
)

type Sector string

const (
	SectorResidential   Sector = "RESIDENTIAL"
	SectorCommercial    Sector = "COMMERCIAL"
	SectorIndustrial    Sector = "INDUSTRIAL"
	SectorInstitutional Sector = "INSTITUTIONAL"
)

// ValidationType classifies entries in a quote's audit trail.
type ValidationType string

const (
	ValidationCreation     ValidationType = "CREATION"
	ValidationModification ValidationType = "MODIFICATION"
	ValidationStatusChange ValidationType = "STATUS_CHANGE"
	ValidationDeletion     ValidationType = "DELETION"
	ValidationCompletion   ValidationType = "COMPLETION"
)

// UnitsOfSale is the vocabulary accepted for quote-line units. Kept in
// French because the printed documents are French-Canadian.
var UnitsOfSale = []string{
	"unité", "sac", "m", "m²", "m³", "pièce", "paquet", "boîte", "gallon",
	"lot", "pi", "pi²", "pi³", "vg³", "pi linéaire", "tonne", "palette", "heure",
}

// TaxConfig is the per-quote tax and classification configuration.
// Rates are percentages (5 means 5%). A nil rate means the Québec
// default; an explicit zero marks a tax-exempt quote and is kept as-is.
type TaxConfig struct {
	FederalRate    *float64   `json:"federal_rate" db:"federal_rate"`
	ProvincialRate *float64   `json:"provincial_rate" db:"provincial_rate"`
	ClientType     ClientType `json:"client_type" db:"client_type"`
	Sector         Sector     `json:"sector" db:"sector"`
	Currency       string     `json:"currency" db:"currency"`
	ValidityDays   int        `json:"validity_days" db:"validity_days"`
	// EstimatedPrice is used as the subtotal when the quote has no lines
	// (pure service estimates).
	EstimatedPrice float64 `json:"estimated_price" db:"estimated_price"`
}

type Quote struct {
	ID         int64         `json:"id" db:"id"`
	DocNumber  string        `json:"doc_number" db:"doc_number"`
	CompanyID  *int64        `json:"company_id,omitempty" db:"company_id"`
	ContactID  *int64        `json:"contact_id,omitempty" db:"contact_id"`
	ClientName string        `json:"client_name" db:"client_name"`
	EmployeeID int64         `json:"employee_id" db:"employee_id"`
	ProjectID  *int64        `json:"project_id,omitempty" db:"project_id"`
	Status     QuoteStatus   `json:"status" db:"status"`
	Priority   QuotePriority `json:"priority" db:"priority"`
	QuoteDate  time.Time     `json:"quote_date" db:"quote_date"`
	DueDate    time.Time     `json:"due_date" db:"due_date"`
	Notes      *string       `json:"notes,omitempty" db:"notes"`
	Tax        TaxConfig     `json:"tax"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
	Lines      []QuoteLine   `json:"lines,omitempty" db:"-"`
}

type QuoteLine struct {
	ID          int64   `json:"id" db:"id"`
	QuoteID     int64   `json:"quote_id" db:"quote_id"`
	LineNo      int     `json:"line_no" db:"line_no"`
	Description string  `json:"description" db:"description"`
	ProductCode *string `json:"product_code,omitempty" db:"product_code"`
	Quantity    float64 `json:"quantity" db:"quantity"`
	Unit        string  `json:"unit" db:"unit"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	Notes       *string `json:"notes,omitempty" db:"notes"`
}

// Amount returns quantity × unit price for the line.
func (l QuoteLine) Amount() float64 {
	return l.Quantity * l.UnitPrice
}

// ValidationEntry is one row of a quote's append-only audit trail.
type ValidationEntry struct {
	ID           int64          `json:"id" db:"id"`
	QuoteID      int64          `json:"quote_id" db:"quote_id"`
	EmployeeID   int64          `json:"employee_id" db:"employee_id"`
	Type         ValidationType `json:"type" db:"type"`
	Comment      string         `json:"comment" db:"comment"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	EmployeeName *string        `json:"employee_name,omitempty" db:"employee_name"`
}

// Totals is the derived financial summary of a quote. Monetary fields are
// rounded to 2 decimals; rates are the percentages that were applied.
type Totals struct {
	Subtotal         float64    `json:"subtotal"`
	FederalRate      float64    `json:"federal_rate"`
	FederalTax       float64    `json:"federal_tax"`
	FederalRebate    float64    `json:"federal_rebate"`
	NetFederal       float64    `json:"net_federal"`
	ProvincialRate   float64    `json:"provincial_rate"`
	ProvincialTax    float64    `json:"provincial_tax"`
	ProvincialRebate float64    `json:"provincial_rebate"`
	NetProvincial    float64    `json:"net_provincial"`
	TotalTaxes       float64    `json:"total_taxes"`
	GrandTotal       float64    `json:"grand_total"`
	TaxSavings       float64    `json:"tax_savings"`
	ClientType       ClientType `json:"client_type"`
	Sector           Sector     `json:"sector"`
}

// QuoteWithDetails joins the display names and derived data the
// presentation layer needs alongside the quote itself.
type QuoteWithDetails struct {
	Quote
	CompanyName  *string           `json:"company_name,omitempty" db:"company_name"`
	ContactName  *string           `json:"contact_name,omitempty" db:"contact_name"`
	EmployeeName string            `json:"employee_name" db:"employee_name"`
	ProjectName  *string           `json:"project_name,omitempty" db:"project_name"`
	Totals       Totals            `json:"totals"`
	History      []ValidationEntry `json:"history,omitempty"`
}

// QuoteSummary is the list-view projection.
type QuoteSummary struct {
	ID           int64         `json:"id" db:"id"`
	DocNumber    string        `json:"doc_number" db:"doc_number"`
	Status       QuoteStatus   `json:"status" db:"status"`
	Priority     QuotePriority `json:"priority" db:"priority"`
	ClientName   string        `json:"client_name" db:"client_name"`
	EmployeeName string        `json:"employee_name" db:"employee_name"`
	QuoteDate    time.Time     `json:"quote_date" db:"quote_date"`
	DueDate      time.Time     `json:"due_date" db:"due_date"`
	Subtotal     float64       `json:"subtotal" db:"subtotal"`
}

// Statistics aggregates the quote book for the dashboard.
type Statistics struct {
	TotalQuotes    int                        `json:"total_quotes"`
	ByStatus       map[QuoteStatus]StatusStat `json:"by_status"`
	TotalAmount    float64                    `json:"total_amount"`
	AcceptanceRate float64                    `json:"acceptance_rate"`
	OverdueOpen    int                        `json:"overdue_open"`
	Pending        int                        `json:"pending"`
}

type StatusStat struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type CreateQuoteLineReq struct {
	Description string  `json:"description" validate:"required,max=500"`
	ProductCode *string `json:"product_code,omitempty" validate:"omitempty,max=50"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Unit        string  `json:"unit" validate:"required,max=20"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Notes       *string `json:"notes,omitempty"`
}

// CreateQuoteRequest carries everything needed to open a quote. At least
// one of CompanyID, ContactID or ClientName must identify the client.
type CreateQuoteRequest struct {
	CompanyID      *int64               `json:"company_id,omitempty" validate:"omitempty,gt=0"`
	ContactID      *int64               `json:"contact_id,omitempty" validate:"omitempty,gt=0"`
	ClientName     *string              `json:"client_name,omitempty" validate:"omitempty,max=200"`
	EmployeeID     int64                `json:"employee_id" validate:"required,gt=0"`
	ProjectID      *int64               `json:"project_id,omitempty" validate:"omitempty,gt=0"`
	DocNumber      *string              `json:"doc_number,omitempty" validate:"omitempty,max=50"`
	QuoteDate      time.Time            `json:"quote_date"`
	DueDate        time.Time            `json:"due_date" validate:"required"`
	Priority       QuotePriority        `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	Notes          *string              `json:"notes,omitempty"`
	ClientType     ClientType           `json:"client_type" validate:"omitempty,oneof=INDIVIDUAL COMPANY PUBLIC_BODY"`
	Sector         Sector               `json:"sector" validate:"omitempty,oneof=RESIDENTIAL COMMERCIAL INDUSTRIAL INSTITUTIONAL"`
	FederalRate    *float64             `json:"federal_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	ProvincialRate *float64             `json:"provincial_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Currency       string               `json:"currency" validate:"omitempty,len=3"`
	ValidityDays   int                  `json:"validity_days" validate:"gte=0,lte=365"`
	EstimatedPrice float64              `json:"estimated_price" validate:"gte=0"`
	Lines          []CreateQuoteLineReq `json:"lines" validate:"omitempty,dive"`
}

// UpdateQuoteRequest replaces the header fields and the full line set.
// The line list is not a diff: callers resend the complete desired lines.
type UpdateQuoteRequest struct {
	CompanyID      *int64               `json:"company_id,omitempty" validate:"omitempty,gt=0"`
	ContactID      *int64               `json:"contact_id,omitempty" validate:"omitempty,gt=0"`
	ClientName     *string              `json:"client_name,omitempty" validate:"omitempty,max=200"`
	EmployeeID     int64                `json:"employee_id" validate:"required,gt=0"`
	ProjectID      *int64               `json:"project_id,omitempty" validate:"omitempty,gt=0"`
	DueDate        time.Time            `json:"due_date" validate:"required"`
	Priority       QuotePriority        `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	Notes          *string              `json:"notes,omitempty"`
	ClientType     ClientType           `json:"client_type" validate:"omitempty,oneof=INDIVIDUAL COMPANY PUBLIC_BODY"`
	Sector         Sector               `json:"sector" validate:"omitempty,oneof=RESIDENTIAL COMMERCIAL INDUSTRIAL INSTITUTIONAL"`
	FederalRate    *float64             `json:"federal_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	ProvincialRate *float64             `json:"provincial_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	EstimatedPrice float64              `json:"estimated_price" validate:"gte=0"`
	Lines          []CreateQuoteLineReq `json:"lines" validate:"omitempty,dive"`
}

type ChangeStatusRequest struct {
	Status     QuoteStatus `json:"status" validate:"required,oneof=DRAFT VALIDATED SENT APPROVED COMPLETED CANCELLED EXPIRED"`
	EmployeeID int64       `json:"employee_id" validate:"required,gt=0"`
	Comment    string      `json:"comment" validate:"max=500"`
}

type ListQuotesRequest struct {
	Status     *QuoteStatus `json:"status,omitempty"`
	CompanyID  *int64       `json:"company_id,omitempty"`
	EmployeeID *int64       `json:"employee_id,omitempty"`
	DateFrom   *time.Time   `json:"date_from,omitempty"`
	DateTo     *time.Time   `json:"date_to,omitempty"`
	Limit      int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int          `json:"offset" validate:"gte=0"`
}

// immutableStatuses lists the statuses in which structural edits are refused.
var immutableStatuses = map[QuoteStatus]bool{
	QuoteStatusApproved:  true,
	QuoteStatusCompleted: true,
	QuoteStatusCancelled: true,
}

// undeletableStatuses lists the statuses in which deletion is refused.
var undeletableStatuses = map[QuoteStatus]bool{
	QuoteStatusApproved:  true,
	QuoteStatusCompleted: true,
}

var statusRank = map[QuoteStatus]int{
	QuoteStatusDraft:     1,
	QuoteStatusValidated: 2,
	QuoteStatusSent:      3,
	QuoteStatusApproved:  4,
	QuoteStatusCompleted: 5,
}

// CanTransition reports whether a quote may move from one status to
// another. Transitions are forward-only; CANCELLED and EXPIRED are
// reachable from any non-terminal status; nothing leaves CANCELLED or
// COMPLETED (resurrect via duplication instead). A same-status call is
// always permitted and treated as a no-op by the service.
func CanTransition(from, to QuoteStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case QuoteStatusCancelled, QuoteStatusCompleted:
		return false
	case QuoteStatusExpired:
		return to == QuoteStatusCancelled
	}
	if to == QuoteStatusCancelled || to == QuoteStatusExpired {
		return true
	}
	fromRank, ok1 := statusRank[from]
	toRank, ok2 := statusRank[to]
	return ok1 && ok2 && toRank > fromRank
}
