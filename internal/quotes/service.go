package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
)

// docNumberPattern restricts custom document numbers to characters that
// are safe in file names and URLs.
var docNumberPattern = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)

const (
	duplicateDueDays  = 30
	projectTargetDays = 60
	statsCacheKey     = "quotes:stats"
)

// ProjectSeed carries everything the projects module needs to open a
// project from an approved quote.
type ProjectSeed struct {
	Name           string
	Description    string
	EstimatedPrice float64
	StartDate      time.Time
	TargetDate     time.Time
	CompanyID      *int64
	QuoteID        int64
	Materials      []MaterialSeed
}

type MaterialSeed struct {
	Description string
	ProductCode *string
	Quantity    float64
	Unit        string
	UnitPrice   float64
	Notes       *string
}

// ProjectService is the slice of the projects module the quote
// lifecycle depends on. Kept as a local interface so the two modules
// stay decoupled.
type ProjectService interface {
	CreateFromQuote(ctx context.Context, seed ProjectSeed) (int64, error)
}

// Directory resolves display names from the CRM modules.
type Directory interface {
	CompanyName(ctx context.Context, id int64) (string, error)
	ContactName(ctx context.Context, id int64) (string, error)
}

// Service implements the quote lifecycle: creation, numbering, edits,
// status transitions with their audit trail, duplication and the
// materialization of approved quotes into projects.
type Service struct {
	repo      Repository
	projects  ProjectService
	directory Directory
	cache     *redis.Client
	logger    *slog.Logger
	prefix    string
	statsTTL  time.Duration
}

type ServiceParams struct {
	Repo      Repository
	Projects  ProjectService
	Directory Directory
	Cache     *redis.Client // optional
	Logger    *slog.Logger
	Prefix    string
	StatsTTL  time.Duration
}

func NewService(p ServiceParams) *Service {
	if p.Prefix == "" {
		p.Prefix = "DEVIS"
	}
	if p.StatsTTL <= 0 {
		p.StatsTTL = 5 * time.Minute
	}
	return &Service{
		repo:      p.Repo,
		projects:  p.Projects,
		directory: p.Directory,
		cache:     p.Cache,
		logger:    p.Logger,
		prefix:    p.Prefix,
		statsTTL:  p.StatsTTL,
	}
}

// resolveClient applies the client precedence rule: a company wins over
// a contact, which wins over a free-text name.
func (s *Service) resolveClient(ctx context.Context, companyID, contactID *int64, clientName *string) (string, error) {
	switch {
	case companyID != nil:
		name, err := s.directory.CompanyName(ctx, *companyID)
		if err != nil {
			return "", fmt.Errorf("resolve company %d: %w", *companyID, err)
		}
		return name, nil
	case contactID != nil:
		name, err := s.directory.ContactName(ctx, *contactID)
		if err != nil {
			return "", fmt.Errorf("resolve contact %d: %w", *contactID, err)
		}
		return name, nil
	case clientName != nil && *clientName != "":
		return *clientName, nil
	}
	return "", fmt.Errorf("%w: a company, a contact or a client name is required", httpx.ErrValidation)
}

func (s *Service) Create(ctx context.Context, req CreateQuoteRequest) (*Quote, error) {
	clientName, err := s.resolveClient(ctx, req.CompanyID, req.ContactID, req.ClientName)
	if err != nil {
		return nil, err
	}

	quoteDate := req.QuoteDate
	if quoteDate.IsZero() {
		quoteDate = time.Now()
	}
	if req.DueDate.Before(quoteDate) {
		return nil, fmt.Errorf("%w: due date precedes quote date", httpx.ErrValidation)
	}

	priority := req.Priority
	if priority == "" {
		priority = QuotePriorityNormal
	}

	tax := TaxConfig{
		FederalRate:    req.FederalRate,
		ProvincialRate: req.ProvincialRate,
		ClientType:     req.ClientType,
		Sector:         req.Sector,
		Currency:       req.Currency,
		ValidityDays:   req.ValidityDays,
		EstimatedPrice: req.EstimatedPrice,
	}
	tax = tax.normalize()

	if req.DocNumber != nil {
		if !docNumberPattern.MatchString(*req.DocNumber) {
			return nil, fmt.Errorf("%w: document number %q contains invalid characters", httpx.ErrValidation, *req.DocNumber)
		}
		exists, err := s.repo.DocNumberExists(ctx, *req.DocNumber)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: document number %s", httpx.ErrDuplicate, *req.DocNumber)
		}
	}

	quote := Quote{
		CompanyID:  req.CompanyID,
		ContactID:  req.ContactID,
		ClientName: clientName,
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		Status:     QuoteStatusDraft,
		Priority:   priority,
		QuoteDate:  quoteDate,
		DueDate:    req.DueDate,
		Notes:      req.Notes,
		Tax:        tax,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if req.DocNumber != nil {
			quote.DocNumber = *req.DocNumber
		} else {
			number, err := tx.NextDocNumber(ctx, s.prefix, quoteDate.Year())
			if err != nil {
				return fmt.Errorf("reserve document number: %w", err)
			}
			quote.DocNumber = number
		}

		id, err := tx.Create(ctx, quote)
		if err != nil {
			return err
		}
		quote.ID = id

		quote.Lines, err = insertLines(ctx, tx, id, req.Lines)
		if err != nil {
			return err
		}

		return tx.InsertValidation(ctx, ValidationEntry{
			QuoteID:    id,
			EmployeeID: req.EmployeeID,
			Type:       ValidationCreation,
			Comment:    "Création du devis",
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "quote created",
		"quote_id", quote.ID, "doc_number", quote.DocNumber, "client", quote.ClientName)
	return &quote, nil
}

func insertLines(ctx context.Context, tx Repository, quoteID int64, reqs []CreateQuoteLineReq) ([]QuoteLine, error) {
	lines := make([]QuoteLine, 0, len(reqs))
	for i, lr := range reqs {
		line := QuoteLine{
			QuoteID:     quoteID,
			LineNo:      i + 1,
			Description: lr.Description,
			ProductCode: lr.ProductCode,
			Quantity:    lr.Quantity,
			Unit:        lr.Unit,
			UnitPrice:   lr.UnitPrice,
			Notes:       lr.Notes,
		}
		id, err := tx.InsertLine(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("insert line %d: %w", i+1, err)
		}
		line.ID = id
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*QuoteWithDetails, error) {
	details, err := s.repo.GetDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	details.Totals = ComputeTotals(details.Lines, details.Tax)
	return details, nil
}

func (s *Service) GetByDocNumber(ctx context.Context, docNumber string) (*QuoteWithDetails, error) {
	quote, err := s.repo.GetByDocNumber(ctx, docNumber)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, quote.ID)
}

func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]QuoteSummary, int, error) {
	return s.repo.List(ctx, req)
}

// Update replaces the quote header and the complete line set. Quotes in
// a terminal status are immutable.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuoteRequest) (*Quote, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if immutableStatuses[current.Status] {
		return nil, fmt.Errorf("%w: quote %s is %s", httpx.ErrInvalidStatus, current.DocNumber, current.Status)
	}

	clientName, err := s.resolveClient(ctx, req.CompanyID, req.ContactID, req.ClientName)
	if err != nil {
		return nil, err
	}
	if req.DueDate.Before(current.QuoteDate) {
		return nil, fmt.Errorf("%w: due date precedes quote date", httpx.ErrValidation)
	}

	tax := current.Tax
	if req.ClientType != "" {
		tax.ClientType = req.ClientType
	}
	if req.Sector != "" {
		tax.Sector = req.Sector
	}
	if req.FederalRate != nil {
		tax.FederalRate = req.FederalRate
	}
	if req.ProvincialRate != nil {
		tax.ProvincialRate = req.ProvincialRate
	}
	tax.EstimatedPrice = req.EstimatedPrice

	priority := req.Priority
	if priority == "" {
		priority = current.Priority
	}

	updates := map[string]any{
		"company_id":      req.CompanyID,
		"contact_id":      req.ContactID,
		"client_name":     clientName,
		"employee_id":     req.EmployeeID,
		"priority":        priority,
		"due_date":        req.DueDate,
		"notes":           req.Notes,
		"client_type":     tax.ClientType,
		"sector":          tax.Sector,
		"federal_rate":    tax.FederalRate,
		"provincial_rate": tax.ProvincialRate,
		"estimated_price": tax.EstimatedPrice,
	}

	var updated *Quote
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateHeader(ctx, id, updates); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		if _, err := insertLines(ctx, tx, id, req.Lines); err != nil {
			return err
		}
		if err := tx.InsertValidation(ctx, ValidationEntry{
			QuoteID:    id,
			EmployeeID: req.EmployeeID,
			Type:       ValidationModification,
			Comment:    "Modification du devis",
		}); err != nil {
			return err
		}
		var err error
		updated, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "quote updated", "quote_id", id, "doc_number", updated.DocNumber)
	return updated, nil
}

// Delete removes a quote and its dependents. Approved and completed
// quotes are never deleted; a deletion entry is written for the audit
// log before the cascade runs.
func (s *Service) Delete(ctx context.Context, id, employeeID int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if undeletableStatuses[current.Status] {
		return fmt.Errorf("%w: quote %s is %s and cannot be deleted", httpx.ErrInvalidStatus, current.DocNumber, current.Status)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.InsertValidation(ctx, ValidationEntry{
			QuoteID:    id,
			EmployeeID: employeeID,
			Type:       ValidationDeletion,
			Comment:    fmt.Sprintf("Suppression du devis %s", current.DocNumber),
		}); err != nil {
			return err
		}
		if err := tx.DeleteValidations(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "quote deleted", "quote_id", id, "doc_number", current.DocNumber)
	return nil
}

// ChangeStatus records an audit entry for every call, including
// same-status calls, and persists the new status when it differs. When
// a quote reaches APPROVED the project materialization runs after the
// status commit, so a materialization failure leaves the quote
// approved and a retry is a same-status call.
func (s *Service) ChangeStatus(ctx context.Context, id int64, req ChangeStatusRequest) (*Quote, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s → %s", httpx.ErrInvalidStatus, current.Status, req.Status)
	}

	changed := current.Status != req.Status
	comment := fmt.Sprintf("Statut: %s → %s", current.Status, req.Status)
	if req.Comment != "" {
		comment += " — " + req.Comment
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if changed {
			if err := tx.UpdateStatus(ctx, id, req.Status); err != nil {
				return err
			}
		}
		return tx.InsertValidation(ctx, ValidationEntry{
			QuoteID:    id,
			EmployeeID: req.EmployeeID,
			Type:       ValidationStatusChange,
			Comment:    comment,
		})
	})
	if err != nil {
		return nil, err
	}

	current.Status = req.Status
	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "quote status changed",
		"quote_id", id, "doc_number", current.DocNumber, "status", req.Status, "changed", changed)

	if req.Status == QuoteStatusApproved {
		if err := s.materializeProject(ctx, current, req.EmployeeID); err != nil {
			return nil, fmt.Errorf("quote %s approved but project creation failed: %w", current.DocNumber, err)
		}
	}
	return current, nil
}

// materializeProject opens the project backing an approved quote. A
// quote materializes at most once: if a project is already linked the
// call is a no-op.
func (s *Service) materializeProject(ctx context.Context, quote *Quote, employeeID int64) error {
	if quote.ProjectID != nil {
		s.logger.WarnContext(ctx, "quote already linked to a project, skipping materialization",
			"quote_id", quote.ID, "project_id", *quote.ProjectID)
		return nil
	}

	totals := ComputeTotals(quote.Lines, quote.Tax)
	start := time.Now()
	seed := ProjectSeed{
		Name:           fmt.Sprintf("Projet - Devis %s", quote.DocNumber),
		Description:    fmt.Sprintf("Projet créé depuis le devis %s pour %s", quote.DocNumber, quote.ClientName),
		EstimatedPrice: totals.Subtotal,
		StartDate:      start,
		TargetDate:     start.AddDate(0, 0, projectTargetDays),
		CompanyID:      quote.CompanyID,
		QuoteID:        quote.ID,
		Materials:      make([]MaterialSeed, 0, len(quote.Lines)),
	}
	for _, line := range quote.Lines {
		seed.Materials = append(seed.Materials, MaterialSeed{
			Description: line.Description,
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			UnitPrice:   line.UnitPrice,
			Notes:       line.Notes,
		})
	}

	projectID, err := s.projects.CreateFromQuote(ctx, seed)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.SetProject(ctx, quote.ID, projectID); err != nil {
			return err
		}
		return tx.InsertValidation(ctx, ValidationEntry{
			QuoteID:    quote.ID,
			EmployeeID: employeeID,
			Type:       ValidationCompletion,
			Comment:    fmt.Sprintf("Projet #%d créé depuis le devis", projectID),
		})
	})
	if err != nil {
		return err
	}

	quote.ProjectID = &projectID
	s.logger.InfoContext(ctx, "project materialized from quote",
		"quote_id", quote.ID, "project_id", projectID)
	return nil
}

// Duplicate copies a quote into a fresh draft with a new number and a
// due date thirty days out. The client, tax configuration and project
// linkage carry over; the notes are prefixed with the source number.
func (s *Service) Duplicate(ctx context.Context, id, employeeID int64) (*Quote, error) {
	source, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	notes := fmt.Sprintf("Copie de %s", source.DocNumber)
	if source.Notes != nil && *source.Notes != "" {
		notes = fmt.Sprintf("Copie de %s - %s", source.DocNumber, *source.Notes)
	}
	dup := Quote{
		CompanyID:  source.CompanyID,
		ContactID:  source.ContactID,
		ClientName: source.ClientName,
		EmployeeID: employeeID,
		ProjectID:  source.ProjectID,
		Status:     QuoteStatusDraft,
		Priority:   source.Priority,
		QuoteDate:  now,
		DueDate:    now.AddDate(0, 0, duplicateDueDays),
		Notes:      &notes,
		Tax:        source.Tax,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		number, err := tx.NextDocNumber(ctx, s.prefix, now.Year())
		if err != nil {
			return err
		}
		dup.DocNumber = number

		copyID, err := tx.Create(ctx, dup)
		if err != nil {
			return err
		}
		dup.ID = copyID

		for _, line := range source.Lines {
			line.ID = 0
			line.QuoteID = copyID
			lineID, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			dup.Lines = append(dup.Lines, line)
		}

		return tx.InsertValidation(ctx, ValidationEntry{
			QuoteID:    copyID,
			EmployeeID: employeeID,
			Type:       ValidationCreation,
			Comment:    fmt.Sprintf("Copie du devis %s", source.DocNumber),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "quote duplicated",
		"source_id", id, "quote_id", dup.ID, "doc_number", dup.DocNumber)
	return &dup, nil
}

// ExpireOverdue marks every open quote whose due date has passed as
// EXPIRED. It returns the number of quotes expired. Invoked by the
// scheduled background job.
func (s *Service) ExpireOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ListOverdue(ctx, asOf)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		quote, err := s.repo.Get(ctx, id)
		if err != nil {
			return expired, err
		}
		_, err = s.ChangeStatus(ctx, id, ChangeStatusRequest{
			Status:     QuoteStatusExpired,
			EmployeeID: quote.EmployeeID,
			Comment:    "Expiration automatique (échéance dépassée)",
		})
		if err != nil {
			return expired, fmt.Errorf("expire quote %d: %w", id, err)
		}
		expired++
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expired overdue quotes", "count", expired)
	}
	return expired, nil
}

// Statistics aggregates the quote book, serving from Redis when a
// fresh snapshot is cached.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	if s.cache != nil {
		if payload, err := s.cache.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var stats Statistics
			if err := json.Unmarshal(payload, &stats); err == nil {
				return &stats, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "stats cache read failed", "error", err)
		}
	}

	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, payload, s.statsTTL).Err(); err != nil {
				s.logger.WarnContext(ctx, "stats cache write failed", "error", err)
			}
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.WarnContext(ctx, "stats cache invalidation failed", "error", err)
	}
}
