package models

import (
	"time"

	"github.com/google/uuid"
)

type CertificateStatus string

const (
	CertificateValid   CertificateStatus = "Valid"
	CertificateExpired CertificateStatus = "Expired"
	CertificatePending CertificateStatus = "Pending"
)

type JobCardStatus string

const (
	JobCardOpen       JobCardStatus = "Open"
	JobCardInProgress JobCardStatus = "In Progress"
	JobCardClosed     JobCardStatus = "Closed"
)

// Priority is shared by job cards and branding contracts.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

type CleaningStatus string

const (
	CleaningScheduled  CleaningStatus = "Scheduled"
	CleaningInProgress CleaningStatus = "In Progress"
	CleaningCompleted  CleaningStatus = "Completed"
	CleaningCancelled  CleaningStatus = "Cancelled"
)

// Trainset is one physical train unit tracked by its number (e.g. TS-2003).
type Trainset struct {
	ID             uuid.UUID `json:"id"`
	Number         string    `json:"number"`
	CurrentMileage float64   `json:"current_mileage"`
	StablingBay    *string   `json:"stabling_bay,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type FitnessCertificate struct {
	ID                uuid.UUID         `json:"id"`
	TrainsetID        uuid.UUID         `json:"trainset_id"`
	CertificateType   string            `json:"certificate_type"`
	Status            CertificateStatus `json:"status"`
	CertificateNumber string            `json:"certificate_number"`
	IssuingAuthority  string            `json:"issuing_authority"`
	IssueDate         time.Time         `json:"issue_date"`
	ExpiryDate        time.Time         `json:"expiry_date"`
	Notes             *string           `json:"notes,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

type JobCard struct {
	ID            uuid.UUID     `json:"id"`
	TrainsetID    uuid.UUID     `json:"trainset_id"`
	JobCardNumber string        `json:"job_card_number"`
	Description   string        `json:"description"`
	Status        JobCardStatus `json:"status"`
	Priority      Priority      `json:"priority"`
	CreatedDate   time.Time     `json:"created_date"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	AssignedTo    *string       `json:"assigned_to,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type BrandingContract struct {
	ID            uuid.UUID `json:"id"`
	TrainsetID    uuid.UUID `json:"trainset_id"`
	PriorityLevel Priority  `json:"priority_level"`
	BrandName     string    `json:"brand_name"`
	CampaignName  *string   `json:"campaign_name,omitempty"`
	ContractStart time.Time `json:"contract_start_date"`
	ContractEnd   time.Time `json:"contract_end_date"`
	RevenueImpact *float64  `json:"revenue_impact,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type CleaningSlot struct {
	ID           uuid.UUID      `json:"id"`
	TrainsetID   uuid.UUID      `json:"trainset_id"`
	SlotDate     time.Time      `json:"slot_date"`
	CleaningType string         `json:"cleaning_type"`
	BayNumber    string         `json:"bay_number"`
	Status       CleaningStatus `json:"status"`
	AssignedCrew *string        `json:"assigned_crew,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type MileageRecord struct {
	ID                uuid.UUID `json:"id"`
	TrainsetID        uuid.UUID `json:"trainset_id"`
	Date              time.Time `json:"date"`
	DailyMileage      float64   `json:"daily_mileage"`
	CumulativeMileage float64   `json:"cumulative_mileage"`
	Route             *string   `json:"route,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type StablingBay struct {
	BayNumber           string    `json:"bay_number"`
	BayType             string    `json:"bay_type"`
	Capacity            int       `json:"capacity"`
	IsAvailable         bool      `json:"is_available"`
	MaintenanceRequired bool      `json:"maintenance_required"`
	Location            *string   `json:"location,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TrainsetDetail is a trainset with every related record and its resolved bay.
// Bay is nil when no bay is assigned or the assigned bay is not registered.
type TrainsetDetail struct {
	Trainset
	Certificates   []FitnessCertificate `json:"fitness_certificates"`
	JobCards       []JobCard            `json:"job_cards"`
	Branding       []BrandingContract   `json:"branding_priorities"`
	CleaningSlots  []CleaningSlot       `json:"cleaning_slots"`
	MileageRecords []MileageRecord      `json:"mileage_records"`
	Bay            *StablingBay         `json:"bay,omitempty"`
}
