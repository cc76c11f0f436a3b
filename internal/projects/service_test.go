package projects

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
	"github.com/constructo-erp/constructo-erp/internal/quotes"
)

type mockRepository struct {
	projects  map[int64]*Project
	materials map[int64][]Material
	nextID    int64
	nextMatID int64
	txError   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		projects:  make(map[int64]*Project),
		materials: make(map[int64][]Material),
		nextID:    1,
		nextMatID: 1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	out := *p
	out.Materials = append([]Material(nil), m.materials[id]...)
	return &out, nil
}

func (m *mockRepository) List(ctx context.Context, req ListProjectsRequest) ([]Project, int, error) {
	var result []Project
	for _, p := range m.projects {
		if req.Status != nil && p.Status != *req.Status {
			continue
		}
		result = append(result, *p)
	}
	return result, len(result), nil
}

func (m *mockRepository) Create(ctx context.Context, p Project) (int64, error) {
	id := m.nextID
	m.nextID++
	p.ID = id
	m.projects[id] = &p
	return id, nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status ProjectStatus) error {
	p, ok := m.projects[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *mockRepository) InsertMaterial(ctx context.Context, mat Material) (int64, error) {
	mat.ID = m.nextMatID
	m.nextMatID++
	m.materials[mat.ProjectID] = append(m.materials[mat.ProjectID], mat)
	return mat.ID, nil
}

func (m *mockRepository) ListMaterials(ctx context.Context, projectID int64) ([]Material, error) {
	return append([]Material(nil), m.materials[projectID]...), nil
}

func newTestService(repo *mockRepository) *Service {
	return NewService(repo, slog.New(slog.DiscardHandler))
}

func TestCreateFromQuote(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	start := time.Now()
	code := "GYP-12"
	id, err := svc.CreateFromQuote(context.Background(), quotes.ProjectSeed{
		Name:           "Projet - Devis DEVIS-2026-001",
		Description:    "Projet créé depuis le devis DEVIS-2026-001",
		EstimatedPrice: 1000,
		StartDate:      start,
		TargetDate:     start.AddDate(0, 0, 60),
		QuoteID:        42,
		Materials: []quotes.MaterialSeed{
			{Description: "Gypse 1/2\"", ProductCode: &code, Quantity: 20, Unit: "sac", UnitPrice: 50},
		},
	})
	require.NoError(t, err)

	project, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ProjectStatusTodo, project.Status)
	assert.Equal(t, 1000.0, project.EstimatedPrice)
	require.NotNil(t, project.QuoteID)
	assert.Equal(t, int64(42), *project.QuoteID)
	require.Len(t, project.Materials, 1)
	assert.Equal(t, "Gypse 1/2\"", project.Materials[0].Description)
	require.NotNil(t, project.Materials[0].ProductCode)
	assert.Equal(t, "GYP-12", *project.Materials[0].ProductCode)
	assert.InDelta(t, 1000.0, project.Materials[0].Amount(), 0.001)
}

func TestCreateProject_Defaults(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	project, err := svc.Create(context.Background(), CreateProjectRequest{Name: "Agrandissement garage"})
	require.NoError(t, err)

	assert.Equal(t, ProjectStatusTodo, project.Status)
	assert.WithinDuration(t, time.Now(), project.StartDate, time.Minute)
	assert.WithinDuration(t, project.StartDate.AddDate(0, 0, 60), project.TargetDate, time.Second)
}

func TestAddMaterial_UnknownProject(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	_, err := svc.AddMaterial(context.Background(), 99, AddMaterialRequest{
		Description: "Clous", Quantity: 10, Unit: "boîte", UnitPrice: 8,
	})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateProjectRequest{Name: "Toiture"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), created.ID, ProjectStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, ProjectStatusInProgress, updated.Status)
}
