package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	quotes      map[int64]*Quote
	lines       map[int64][]QuoteLine
	validations map[int64][]ValidationEntry
	nextID      int64
	nextLineID  int64
	sequences   map[int]int64

	// Error injection
	txError     error
	getError    error
	createError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		quotes:      make(map[int64]*Quote),
		lines:       make(map[int64][]QuoteLine),
		validations: make(map[int64][]ValidationEntry),
		sequences:   make(map[int]int64),
		nextID:      1,
		nextLineID:  1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Quote, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	q, ok := m.quotes[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	out := *q
	out.Lines = append([]QuoteLine(nil), m.lines[id]...)
	return &out, nil
}

func (m *mockRepository) GetByDocNumber(ctx context.Context, docNumber string) (*Quote, error) {
	for id, q := range m.quotes {
		if q.DocNumber == docNumber {
			return m.Get(ctx, id)
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *mockRepository) GetDetails(ctx context.Context, id int64) (*QuoteWithDetails, error) {
	q, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	history, _ := m.ListValidations(ctx, id)
	return &QuoteWithDetails{Quote: *q, EmployeeName: "Marc Tremblay", History: history}, nil
}

func (m *mockRepository) List(ctx context.Context, req ListQuotesRequest) ([]QuoteSummary, int, error) {
	var result []QuoteSummary
	for id, q := range m.quotes {
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		var subtotal float64
		for _, l := range m.lines[id] {
			subtotal += l.Amount()
		}
		if subtotal == 0 {
			subtotal = q.Tax.EstimatedPrice
		}
		result = append(result, QuoteSummary{
			ID: id, DocNumber: q.DocNumber, Status: q.Status, Priority: q.Priority,
			ClientName: q.ClientName, QuoteDate: q.QuoteDate, DueDate: q.DueDate,
			Subtotal: subtotal,
		})
	}
	return result, len(result), nil
}

func (m *mockRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	for id, q := range m.quotes {
		switch q.Status {
		case QuoteStatusApproved, QuoteStatusCompleted, QuoteStatusCancelled, QuoteStatusExpired:
			continue
		}
		if q.DueDate.Before(asOf) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockRepository) Create(ctx context.Context, q Quote) (int64, error) {
	if m.createError != nil {
		return 0, m.createError
	}
	for _, existing := range m.quotes {
		if existing.DocNumber == q.DocNumber {
			return 0, httpx.ErrDuplicate
		}
	}
	id := m.nextID
	m.nextID++
	q.ID = id
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	stored := q
	stored.Lines = nil
	m.quotes[id] = &stored
	return id, nil
}

func (m *mockRepository) UpdateHeader(ctx context.Context, id int64, updates map[string]any) error {
	q, ok := m.quotes[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if v, ok := updates["client_name"]; ok {
		q.ClientName = v.(string)
	}
	if v, ok := updates["employee_id"]; ok {
		q.EmployeeID = v.(int64)
	}
	if v, ok := updates["priority"]; ok {
		q.Priority = v.(QuotePriority)
	}
	if v, ok := updates["due_date"]; ok {
		q.DueDate = v.(time.Time)
	}
	if v, ok := updates["notes"]; ok {
		q.Notes, _ = v.(*string)
	}
	if v, ok := updates["client_type"]; ok {
		q.Tax.ClientType = v.(ClientType)
	}
	if v, ok := updates["sector"]; ok {
		q.Tax.Sector = v.(Sector)
	}
	if v, ok := updates["federal_rate"]; ok {
		q.Tax.FederalRate = v.(*float64)
	}
	if v, ok := updates["provincial_rate"]; ok {
		q.Tax.ProvincialRate = v.(*float64)
	}
	if v, ok := updates["estimated_price"]; ok {
		q.Tax.EstimatedPrice = v.(float64)
	}
	q.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	q, ok := m.quotes[id]
	if !ok {
		return httpx.ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *mockRepository) SetProject(ctx context.Context, id, projectID int64) error {
	q, ok := m.quotes[id]
	if !ok {
		return httpx.ErrNotFound
	}
	q.ProjectID = &projectID
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.quotes[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.quotes, id)
	return nil
}

func (m *mockRepository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	line.ID = m.nextLineID
	m.nextLineID++
	m.lines[line.QuoteID] = append(m.lines[line.QuoteID], line)
	return line.ID, nil
}

func (m *mockRepository) DeleteLines(ctx context.Context, quoteID int64) error {
	delete(m.lines, quoteID)
	return nil
}

func (m *mockRepository) InsertValidation(ctx context.Context, entry ValidationEntry) error {
	entry.ID = int64(len(m.validations[entry.QuoteID]) + 1)
	entry.CreatedAt = time.Now()
	m.validations[entry.QuoteID] = append(m.validations[entry.QuoteID], entry)
	return nil
}

func (m *mockRepository) ListValidations(ctx context.Context, quoteID int64) ([]ValidationEntry, error) {
	return append([]ValidationEntry(nil), m.validations[quoteID]...), nil
}

func (m *mockRepository) DeleteValidations(ctx context.Context, quoteID int64) error {
	delete(m.validations, quoteID)
	return nil
}

func (m *mockRepository) NextDocNumber(ctx context.Context, prefix string, year int) (string, error) {
	m.sequences[year]++
	return fmt.Sprintf("%s-%d-%03d", prefix, year, m.sequences[year]), nil
}

func (m *mockRepository) DocNumberExists(ctx context.Context, docNumber string) (bool, error) {
	for _, q := range m.quotes {
		if q.DocNumber == docNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{ByStatus: make(map[QuoteStatus]StatusStat)}
	for id, q := range m.quotes {
		var subtotal float64
		for _, l := range m.lines[id] {
			subtotal += l.Amount()
		}
		if subtotal == 0 {
			subtotal = q.Tax.EstimatedPrice
		}
		stat := stats.ByStatus[q.Status]
		stat.Count++
		stat.Amount += subtotal
		stats.ByStatus[q.Status] = stat
		stats.TotalQuotes++
		stats.TotalAmount += subtotal
	}
	finalizeStatistics(stats)
	return stats, nil
}

// ============================================================================
// MOCK COLLABORATORS
// ============================================================================

type mockProjects struct {
	created     []ProjectSeed
	nextID      int64
	createError error
}

func (m *mockProjects) CreateFromQuote(ctx context.Context, seed ProjectSeed) (int64, error) {
	if m.createError != nil {
		return 0, m.createError
	}
	m.nextID++
	m.created = append(m.created, seed)
	return m.nextID, nil
}

type mockDirectory struct{}

func (mockDirectory) CompanyName(ctx context.Context, id int64) (string, error) {
	if id == 404 {
		return "", httpx.ErrNotFound
	}
	return fmt.Sprintf("Construction Bélanger #%d", id), nil
}

func (mockDirectory) ContactName(ctx context.Context, id int64) (string, error) {
	if id == 404 {
		return "", httpx.ErrNotFound
	}
	return fmt.Sprintf("Julie Gagnon #%d", id), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestService(repo *mockRepository, projects *mockProjects) *Service {
	return NewService(ServiceParams{
		Repo:      repo,
		Projects:  projects,
		Directory: mockDirectory{},
		Logger:    testLogger(),
		Prefix:    "DEVIS",
	})
}

func validCreateRequest() CreateQuoteRequest {
	companyID := int64(1)
	code := "GYP-12"
	return CreateQuoteRequest{
		CompanyID:  &companyID,
		EmployeeID: 7,
		DueDate:    time.Now().AddDate(0, 0, 30),
		ClientType: ClientTypeIndividual,
		Sector:     SectorResidential,
		Lines: []CreateQuoteLineReq{
			{Description: "Gypse 1/2\"", ProductCode: &code, Quantity: 20, Unit: "sac", UnitPrice: 50},
		},
	}
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateQuote_AssignsSequentialNumbers(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()
	year := time.Now().Year()

	first, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("DEVIS-%d-001", year), first.DocNumber)
	assert.Equal(t, fmt.Sprintf("DEVIS-%d-002", year), second.DocNumber)
	assert.Equal(t, QuoteStatusDraft, first.Status)
}

func TestCreateQuote_WritesCreationAudit(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})

	quote, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	entries := repo.validations[quote.ID]
	require.Len(t, entries, 1)
	assert.Equal(t, ValidationCreation, entries[0].Type)
	assert.Equal(t, int64(7), entries[0].EmployeeID)
}

func TestCreateQuote_CompanyWinsOverContact(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})

	req := validCreateRequest()
	contactID := int64(2)
	freeText := "Quelqu'un"
	req.ContactID = &contactID
	req.ClientName = &freeText

	quote, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Construction Bélanger #1", quote.ClientName)
}

func TestCreateQuote_RequiresAClient(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})

	req := validCreateRequest()
	req.CompanyID = nil

	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateQuote_RejectsDueDateBeforeQuoteDate(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})

	req := validCreateRequest()
	req.QuoteDate = time.Now()
	req.DueDate = time.Now().AddDate(0, 0, -1)

	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateQuote_CustomNumber(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	req := validCreateRequest()
	custom := "SOUMISSION_2026-A1"
	req.DocNumber = &custom

	quote, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, custom, quote.DocNumber)

	// Reusing the same number must fail.
	again := validCreateRequest()
	again.DocNumber = &custom
	_, err = svc.Create(ctx, again)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateQuote_RejectsInvalidCustomNumber(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})

	req := validCreateRequest()
	bad := "DEVIS 2026/001"
	req.DocNumber = &bad

	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateQuote_DefaultsApplied(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})

	req := validCreateRequest()
	req.Priority = ""

	quote, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, QuotePriorityNormal, quote.Priority)
	require.NotNil(t, quote.Tax.FederalRate)
	require.NotNil(t, quote.Tax.ProvincialRate)
	assert.Equal(t, 5.0, *quote.Tax.FederalRate)
	assert.Equal(t, 9.975, *quote.Tax.ProvincialRate)
	assert.Equal(t, "CAD", quote.Tax.Currency)
}

func TestCreateQuote_ExplicitZeroRatesKept(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})

	req := validCreateRequest()
	zero := 0.0
	req.FederalRate = &zero
	req.ProvincialRate = &zero

	quote, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, quote.Tax.FederalRate)
	require.NotNil(t, quote.Tax.ProvincialRate)
	assert.Zero(t, *quote.Tax.FederalRate)
	assert.Zero(t, *quote.Tax.ProvincialRate)

	// A tax-exempt quote totals out at the bare subtotal.
	details, err := svc.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1000.00, details.Totals.GrandTotal, 0.001)
	assert.Zero(t, details.Totals.TotalTaxes)
}

// ============================================================================
// UPDATE
// ============================================================================

func TestUpdateQuote_ReplacesLineSet(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	quote, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	companyID := int64(1)
	updated, err := svc.Update(ctx, quote.ID, UpdateQuoteRequest{
		CompanyID:  &companyID,
		EmployeeID: 7,
		DueDate:    time.Now().AddDate(0, 0, 45),
		Lines: []CreateQuoteLineReq{
			{Description: "Béton 30 MPa", Quantity: 4, Unit: "m³", UnitPrice: 250},
			{Description: "Armature", Quantity: 100, Unit: "m", UnitPrice: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, updated.Lines, 2)
	assert.Equal(t, 1, updated.Lines[0].LineNo)
	assert.Equal(t, 2, updated.Lines[1].LineNo)
	assert.Equal(t, "Béton 30 MPa", updated.Lines[0].Description)

	entries := repo.validations[quote.ID]
	require.Len(t, entries, 2)
	assert.Equal(t, ValidationModification, entries[1].Type)
}

func TestUpdateQuote_RejectsTerminalStatuses(t *testing.T) {
	for _, status := range []QuoteStatus{QuoteStatusApproved, QuoteStatusCompleted, QuoteStatusCancelled} {
		repo := newMockRepository()
		svc := newTestService(repo, &mockProjects{})
		ctx := context.Background()

		quote, err := svc.Create(ctx, validCreateRequest())
		require.NoError(t, err)
		repo.quotes[quote.ID].Status = status

		companyID := int64(1)
		_, err = svc.Update(ctx, quote.ID, UpdateQuoteRequest{
			CompanyID:  &companyID,
			EmployeeID: 7,
			DueDate:    time.Now().AddDate(0, 0, 30),
		})
		assert.ErrorIsf(t, err, httpx.ErrInvalidStatus, "status %s", status)
	}
}

// ============================================================================
// DELETE
// ============================================================================

func TestDeleteQuote_Cascades(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	quote, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, quote.ID, 7))

	assert.NotContains(t, repo.quotes, quote.ID)
	assert.NotContains(t, repo.lines, quote.ID)
	assert.NotContains(t, repo.validations, quote.ID)
}

func TestDeleteQuote_RefusesApprovedAndCompleted(t *testing.T) {
	for _, status := range []QuoteStatus{QuoteStatusApproved, QuoteStatusCompleted} {
		repo := newMockRepository()
		svc := newTestService(repo, &mockProjects{})
		ctx := context.Background()

		quote, err := svc.Create(ctx, validCreateRequest())
		require.NoError(t, err)
		repo.quotes[quote.ID].Status = status

		err = svc.Delete(ctx, quote.ID, 7)
		assert.ErrorIsf(t, err, httpx.ErrInvalidStatus, "status %s", status)
		assert.Contains(t, repo.quotes, quote.ID)
	}
}

// ============================================================================
// STATUS CHANGES
// ============================================================================

func TestChangeStatus_AuditOnEveryCall(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	quote, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusValidated, EmployeeID: 7})
	require.NoError(t, err)
	// Same-status call: still audited, status untouched.
	_, err = svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusValidated, EmployeeID: 7})
	require.NoError(t, err)

	entries := repo.validations[quote.ID]
	require.Len(t, entries, 3) // creation + two status calls
	assert.Equal(t, ValidationStatusChange, entries[1].Type)
	assert.Equal(t, ValidationStatusChange, entries[2].Type)
	assert.Equal(t, QuoteStatusValidated, repo.quotes[quote.ID].Status)
}

func TestChangeStatus_RejectsBackwardTransition(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	quote, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	repo.quotes[quote.ID].Status = QuoteStatusSent

	_, err = svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusDraft, EmployeeID: 7})
	assert.ErrorIs(t, err, httpx.ErrInvalidStatus)
}

func TestChangeStatus_ApprovalMaterializesProject(t *testing.T) {
	repo := newMockRepository()
	projects := &mockProjects{}
	svc := newTestService(repo, projects)
	ctx := context.Background()

	quote, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusApproved, EmployeeID: 7})
	require.NoError(t, err)

	require.Len(t, projects.created, 1)
	seed := projects.created[0]
	assert.Equal(t, fmt.Sprintf("Projet - Devis %s", quote.DocNumber), seed.Name)
	assert.InDelta(t, 1000.00, seed.EstimatedPrice, 0.001)
	assert.Equal(t, quote.ID, seed.QuoteID)
	require.Len(t, seed.Materials, 1)
	assert.Equal(t, "Gypse 1/2\"", seed.Materials[0].Description)
	require.NotNil(t, seed.Materials[0].ProductCode)
	assert.Equal(t, "GYP-12", *seed.Materials[0].ProductCode)
	assert.WithinDuration(t, seed.StartDate.AddDate(0, 0, 60), seed.TargetDate, time.Second)

	require.NotNil(t, updated.ProjectID)
	require.NotNil(t, repo.quotes[quote.ID].ProjectID)
	assert.Equal(t, int64(1), *repo.quotes[quote.ID].ProjectID)

	// COMPLETION entry recorded after the linkage.
	entries := repo.validations[quote.ID]
	assert.Equal(t, ValidationCompletion, entries[len(entries)-1].Type)
}

func TestChangeStatus_MaterializesOnlyOnce(t *testing.T) {
	repo := newMockRepository()
	projects := &mockProjects{}
	svc := newTestService(repo, projects)
	ctx := context.Background()

	quote, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusApproved, EmployeeID: 7})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusApproved, EmployeeID: 7})
	require.NoError(t, err)

	assert.Len(t, projects.created, 1)
}

func TestChangeStatus_MaterializationFailureLeavesQuoteApproved(t *testing.T) {
	repo := newMockRepository()
	projects := &mockProjects{createError: errors.New("projects module down")}
	svc := newTestService(repo, projects)
	ctx := context.Background()

	quote, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusApproved, EmployeeID: 7})
	require.Error(t, err)
	assert.Equal(t, QuoteStatusApproved, repo.quotes[quote.ID].Status)

	// Retry as a same-status call once the projects module recovers.
	projects.createError = nil
	_, err = svc.ChangeStatus(ctx, quote.ID, ChangeStatusRequest{Status: QuoteStatusApproved, EmployeeID: 7})
	require.NoError(t, err)
	assert.Len(t, projects.created, 1)
}

// ============================================================================
// DUPLICATION
// ============================================================================

func TestDuplicateQuote(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	source, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	repo.quotes[source.ID].Status = QuoteStatusApproved
	projectID := int64(99)
	repo.quotes[source.ID].ProjectID = &projectID

	dup, err := svc.Duplicate(ctx, source.ID, 8)
	require.NoError(t, err)

	assert.NotEqual(t, source.DocNumber, dup.DocNumber)
	assert.Equal(t, QuoteStatusDraft, dup.Status)
	require.NotNil(t, dup.ProjectID)
	assert.Equal(t, projectID, *dup.ProjectID)
	assert.Equal(t, int64(8), dup.EmployeeID)
	require.NotNil(t, dup.Notes)
	assert.Equal(t, fmt.Sprintf("Copie de %s", source.DocNumber), *dup.Notes)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), dup.DueDate, time.Minute)
	require.Len(t, dup.Lines, 1)
	assert.Equal(t, source.Lines[0].Description, dup.Lines[0].Description)
}

func TestDuplicateQuote_PrefixesExistingNotes(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	req := validCreateRequest()
	notes := "Client pressé"
	req.Notes = &notes
	source, err := svc.Create(ctx, req)
	require.NoError(t, err)

	dup, err := svc.Duplicate(ctx, source.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, dup.Notes)
	assert.Equal(t, fmt.Sprintf("Copie de %s - Client pressé", source.DocNumber), *dup.Notes)
}

func TestDuplicateQuote_ApprovingCopyDoesNotRecreateProject(t *testing.T) {
	repo := newMockRepository()
	projects := &mockProjects{}
	svc := newTestService(repo, projects)
	ctx := context.Background()

	source, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, source.ID, ChangeStatusRequest{Status: QuoteStatusApproved, EmployeeID: 7})
	require.NoError(t, err)
	require.Len(t, projects.created, 1)

	dup, err := svc.Duplicate(ctx, source.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, dup.ProjectID)
	assert.Equal(t, *repo.quotes[source.ID].ProjectID, *dup.ProjectID)

	// The copy already carries the linkage, so approval is a no-op for
	// the projects module.
	_, err = svc.ChangeStatus(ctx, dup.ID, ChangeStatusRequest{Status: QuoteStatusApproved, EmployeeID: 7})
	require.NoError(t, err)
	assert.Len(t, projects.created, 1)
}

// ============================================================================
// EXPIRY AND STATISTICS
// ============================================================================

func TestExpireOverdue(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	overdue, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	repo.quotes[overdue.ID].DueDate = time.Now().AddDate(0, 0, -5)

	fresh, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	count, err := svc.ExpireOverdue(ctx, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, QuoteStatusExpired, repo.quotes[overdue.ID].Status)
	assert.Equal(t, QuoteStatusDraft, repo.quotes[fresh.ID].Status)
}

func TestStatistics(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockProjects{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, validCreateRequest())
		require.NoError(t, err)
	}
	repo.quotes[1].Status = QuoteStatusApproved
	repo.quotes[2].Status = QuoteStatusCancelled

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalQuotes)
	assert.InDelta(t, 3000.00, stats.TotalAmount, 0.001)
	assert.InDelta(t, 50.0, stats.AcceptanceRate, 0.001)
	assert.Equal(t, 1, stats.Pending)
}
