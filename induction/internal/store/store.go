package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metro-depot/fleet/induction/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

// RecordKind names a child record table that can be deleted by id.
type RecordKind string

const (
	KindCertificate  RecordKind = "certificates"
	KindJobCard      RecordKind = "job-cards"
	KindBranding     RecordKind = "branding"
	KindCleaningSlot RecordKind = "cleaning-slots"
)

func ParseRecordKind(s string) (RecordKind, error) {
	switch k := RecordKind(s); k {
	case KindCertificate, KindJobCard, KindBranding, KindCleaningSlot:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown record kind %q", ErrInvalid, s)
}

type Store interface {
	CreateTrainset(ctx context.Context, in TrainsetInput) (models.Trainset, error)
	GetTrainset(ctx context.Context, number string) (models.Trainset, error)
	ListTrainsets(ctx context.Context) ([]models.Trainset, error)
	UpdateTrainset(ctx context.Context, number string, in TrainsetUpdate) (models.Trainset, error)
	DeleteTrainset(ctx context.Context, number string) error
	GetTrainsetDetail(ctx context.Context, number string) (models.TrainsetDetail, error)

	AddCertificate(ctx context.Context, number string, in CertificateInput) (models.FitnessCertificate, error)
	AddJobCard(ctx context.Context, number string, in JobCardInput) (models.JobCard, error)
	UpdateJobCardStatus(ctx context.Context, id uuid.UUID, status models.JobCardStatus) (models.JobCard, error)
	AddBrandingContract(ctx context.Context, number string, in BrandingInput) (models.BrandingContract, error)
	AddCleaningSlot(ctx context.Context, number string, in CleaningSlotInput) (models.CleaningSlot, error)
	UpdateCleaningSlotStatus(ctx context.Context, id uuid.UUID, status models.CleaningStatus) (models.CleaningSlot, error)
	RecordMileage(ctx context.Context, number string, in MileageInput) (models.MileageRecord, error)
	DeleteRecord(ctx context.Context, kind RecordKind, id uuid.UUID) error

	UpsertStablingBay(ctx context.Context, in StablingBayInput) (models.StablingBay, error)
	GetStablingBay(ctx context.Context, bayNumber string) (models.StablingBay, error)
	ListStablingBays(ctx context.Context) ([]models.StablingBay, error)

	ClearAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

type TrainsetInput struct {
	Number         string  `json:"number" yaml:"number"`
	CurrentMileage float64 `json:"current_mileage" yaml:"current_mileage"`
	StablingBay    *string `json:"stabling_bay,omitempty" yaml:"stabling_bay"`
}

func (in TrainsetInput) Validate() error {
	if strings.TrimSpace(in.Number) == "" {
		return fmt.Errorf("%w: number is required", ErrInvalid)
	}
	if in.CurrentMileage < 0 {
		return fmt.Errorf("%w: current_mileage must not be negative", ErrInvalid)
	}
	return nil
}

// TrainsetUpdate carries a partial update; nil fields are left unchanged.
// ClearStablingBay unassigns the bay.
type TrainsetUpdate struct {
	CurrentMileage   *float64 `json:"current_mileage,omitempty"`
	StablingBay      *string  `json:"stabling_bay,omitempty"`
	ClearStablingBay bool     `json:"clear_stabling_bay,omitempty"`
}

type CertificateInput struct {
	CertificateType   string                   `json:"certificate_type" yaml:"type"`
	Status            models.CertificateStatus `json:"status" yaml:"status"`
	CertificateNumber string                   `json:"certificate_number" yaml:"number"`
	IssuingAuthority  string                   `json:"issuing_authority" yaml:"authority"`
	IssueDate         time.Time                `json:"issue_date" yaml:"issued"`
	ExpiryDate        time.Time                `json:"expiry_date" yaml:"expires"`
	Notes             *string                  `json:"notes,omitempty" yaml:"notes"`
}

func (in *CertificateInput) Validate() error {
	if in.CertificateType == "" || in.CertificateNumber == "" {
		return fmt.Errorf("%w: certificate_type and certificate_number are required", ErrInvalid)
	}
	if in.ExpiryDate.Before(in.IssueDate) {
		return fmt.Errorf("%w: expiry_date is before issue_date", ErrInvalid)
	}
	if in.Status == "" {
		in.Status = models.CertificateValid
	}
	return nil
}

type JobCardInput struct {
	JobCardNumber string               `json:"job_card_number" yaml:"number"`
	Description   string               `json:"description" yaml:"description"`
	Status        models.JobCardStatus `json:"status" yaml:"status"`
	Priority      models.Priority      `json:"priority" yaml:"priority"`
	CreatedDate   time.Time            `json:"created_date" yaml:"created"`
	DueDate       *time.Time           `json:"due_date,omitempty" yaml:"due"`
	AssignedTo    *string              `json:"assigned_to,omitempty" yaml:"assigned_to"`
}

func (in *JobCardInput) Validate() error {
	if in.JobCardNumber == "" {
		return fmt.Errorf("%w: job_card_number is required", ErrInvalid)
	}
	if in.Status == "" {
		in.Status = models.JobCardOpen
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !validJobCardStatus(in.Status) {
		return fmt.Errorf("%w: unknown job card status %q", ErrInvalid, in.Status)
	}
	if !validPriority(in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, in.Priority)
	}
	if in.CreatedDate.IsZero() {
		in.CreatedDate = time.Now().UTC()
	}
	return nil
}

type BrandingInput struct {
	PriorityLevel models.Priority `json:"priority_level" yaml:"priority"`
	BrandName     string          `json:"brand_name" yaml:"brand"`
	CampaignName  *string         `json:"campaign_name,omitempty" yaml:"campaign"`
	ContractStart time.Time       `json:"contract_start_date" yaml:"start"`
	ContractEnd   time.Time       `json:"contract_end_date" yaml:"end"`
	RevenueImpact *float64        `json:"revenue_impact,omitempty" yaml:"revenue_impact"`
}

func (in *BrandingInput) Validate() error {
	if in.BrandName == "" {
		return fmt.Errorf("%w: brand_name is required", ErrInvalid)
	}
	if !validPriority(in.PriorityLevel) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, in.PriorityLevel)
	}
	if in.ContractEnd.Before(in.ContractStart) {
		return fmt.Errorf("%w: contract ends before it starts", ErrInvalid)
	}
	return nil
}

type CleaningSlotInput struct {
	SlotDate     time.Time             `json:"slot_date" yaml:"date"`
	CleaningType string                `json:"cleaning_type" yaml:"type"`
	BayNumber    string                `json:"bay_number" yaml:"bay"`
	Status       models.CleaningStatus `json:"status" yaml:"status"`
	AssignedCrew *string               `json:"assigned_crew,omitempty" yaml:"crew"`
}

func (in *CleaningSlotInput) Validate() error {
	if in.SlotDate.IsZero() || in.CleaningType == "" || in.BayNumber == "" {
		return fmt.Errorf("%w: slot_date, cleaning_type and bay_number are required", ErrInvalid)
	}
	if in.Status == "" {
		in.Status = models.CleaningScheduled
	}
	if !validCleaningStatus(in.Status) {
		return fmt.Errorf("%w: unknown cleaning status %q", ErrInvalid, in.Status)
	}
	return nil
}

type MileageInput struct {
	Date              time.Time `json:"date" yaml:"date"`
	DailyMileage      float64   `json:"daily_mileage" yaml:"daily"`
	CumulativeMileage float64   `json:"cumulative_mileage" yaml:"cumulative"`
	Route             *string   `json:"route,omitempty" yaml:"route"`
}

func (in *MileageInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalid)
	}
	if in.DailyMileage < 0 || in.CumulativeMileage < 0 {
		return fmt.Errorf("%w: mileage must not be negative", ErrInvalid)
	}
	return nil
}

type StablingBayInput struct {
	BayNumber           string  `json:"bay_number" yaml:"number"`
	BayType             string  `json:"bay_type" yaml:"type"`
	Capacity            int     `json:"capacity" yaml:"capacity"`
	IsAvailable         bool    `json:"is_available" yaml:"available"`
	MaintenanceRequired bool    `json:"maintenance_required" yaml:"maintenance_required"`
	Location            *string `json:"location,omitempty" yaml:"location"`
}

func (in *StablingBayInput) Validate() error {
	if in.BayNumber == "" {
		return fmt.Errorf("%w: bay_number is required", ErrInvalid)
	}
	if in.Capacity <= 0 {
		in.Capacity = 1
	}
	return nil
}

func validPriority(p models.Priority) bool {
	switch p {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return true
	}
	return false
}

func validJobCardStatus(s models.JobCardStatus) bool {
	switch s {
	case models.JobCardOpen, models.JobCardInProgress, models.JobCardClosed:
		return true
	}
	return false
}

func validCleaningStatus(s models.CleaningStatus) bool {
	switch s {
	case models.CleaningScheduled, models.CleaningInProgress, models.CleaningCompleted, models.CleaningCancelled:
		return true
	}
	return false
}

// ValidJobCardStatus and ValidCleaningStatus are used by callers that
// update status without going through an input struct.
func ValidJobCardStatus(s models.JobCardStatus) bool   { return validJobCardStatus(s) }
func ValidCleaningStatus(s models.CleaningStatus) bool { return validCleaningStatus(s) }
