package projects

import "time"

// ProjectStatus tracks site progress.
type ProjectStatus string

const (
	ProjectStatusTodo       ProjectStatus = "TODO"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusDone       ProjectStatus = "DONE"
	ProjectStatusCancelled  ProjectStatus = "CANCELLED"
)

type Project struct {
	ID             int64         `json:"id" db:"id"`
	Name           string        `json:"name" db:"name"`
	Description    *string       `json:"description,omitempty" db:"description"`
	Status         ProjectStatus `json:"status" db:"status"`
	EstimatedPrice float64       `json:"estimated_price" db:"estimated_price"`
	StartDate      time.Time     `json:"start_date" db:"start_date"`
	TargetDate     time.Time     `json:"target_date" db:"target_date"`
	CompanyID      *int64        `json:"company_id,omitempty" db:"company_id"`
	QuoteID        *int64        `json:"quote_id,omitempty" db:"quote_id"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
	Materials      []Material    `json:"materials,omitempty" db:"-"`
}

// Material is a planned supply line on a project. Projects opened from
// an approved quote inherit one material per quote line.
type Material struct {
	ID          int64   `json:"id" db:"id"`
	ProjectID   int64   `json:"project_id" db:"project_id"`
	Description string  `json:"description" db:"description"`
	ProductCode *string `json:"product_code,omitempty" db:"product_code"`
	Quantity    float64 `json:"quantity" db:"quantity"`
	Unit        string  `json:"unit" db:"unit"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	Notes       *string `json:"notes,omitempty" db:"notes"`
}

func (m Material) Amount() float64 {
	return m.Quantity * m.UnitPrice
}

type CreateProjectRequest struct {
	Name           string     `json:"name" validate:"required,max=200"`
	Description    *string    `json:"description,omitempty"`
	EstimatedPrice float64    `json:"estimated_price" validate:"gte=0"`
	StartDate      time.Time  `json:"start_date"`
	TargetDate     time.Time  `json:"target_date"`
	CompanyID      *int64     `json:"company_id,omitempty" validate:"omitempty,gt=0"`
}

type AddMaterialRequest struct {
	Description string  `json:"description" validate:"required,max=500"`
	ProductCode *string `json:"product_code,omitempty" validate:"omitempty,max=50"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Unit        string  `json:"unit" validate:"required,max=20"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Notes       *string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status ProjectStatus `json:"status" validate:"required,oneof=TODO IN_PROGRESS DONE CANCELLED"`
}

type ListProjectsRequest struct {
	Status    *ProjectStatus `json:"status,omitempty"`
	CompanyID *int64         `json:"company_id,omitempty"`
	Limit     int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset    int            `json:"offset" validate:"gte=0"`
}
