package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/metro-depot/fleet/induction/internal/models"
)

// Dialect selects placeholder style and column types.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore persists fleet records in Postgres or SQLite. Queries are
// written with $n placeholders and rebound for SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

func (s *SQLStore) q(query string) string {
	if s.dialect == DialectSQLite {
		return placeholderRe.ReplaceAllString(query, "?$1")
	}
	return query
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

const trainsetColumns = `id, number, current_mileage, stabling_bay, created_at, updated_at`

func scanTrainset(row rowScanner) (models.Trainset, error) {
	var (
		ts  models.Trainset
		bay sql.NullString
	)
	if err := row.Scan(&ts.ID, &ts.Number, &ts.CurrentMileage, &bay, &ts.CreatedAt, &ts.UpdatedAt); err != nil {
		return models.Trainset{}, err
	}
	ts.StablingBay = nullString(bay)
	return ts, nil
}

const certificateColumns = `id, trainset_id, certificate_type, status, certificate_number, issuing_authority, issue_date, expiry_date, notes, created_at`

func scanCertificate(row rowScanner) (models.FitnessCertificate, error) {
	var (
		c     models.FitnessCertificate
		notes sql.NullString
	)
	if err := row.Scan(&c.ID, &c.TrainsetID, &c.CertificateType, &c.Status, &c.CertificateNumber,
		&c.IssuingAuthority, &c.IssueDate, &c.ExpiryDate, &notes, &c.CreatedAt); err != nil {
		return models.FitnessCertificate{}, err
	}
	c.Notes = nullString(notes)
	return c, nil
}

const jobCardColumns = `id, trainset_id, job_card_number, description, status, priority, created_date, due_date, assigned_to, created_at`

func scanJobCard(row rowScanner) (models.JobCard, error) {
	var (
		jc       models.JobCard
		due      sql.NullTime
		assigned sql.NullString
	)
	if err := row.Scan(&jc.ID, &jc.TrainsetID, &jc.JobCardNumber, &jc.Description, &jc.Status,
		&jc.Priority, &jc.CreatedDate, &due, &assigned, &jc.CreatedAt); err != nil {
		return models.JobCard{}, err
	}
	if due.Valid {
		t := due.Time
		jc.DueDate = &t
	}
	jc.AssignedTo = nullString(assigned)
	return jc, nil
}

const brandingColumns = `id, trainset_id, priority_level, brand_name, campaign_name, contract_start, contract_end, revenue_impact, created_at`

func scanBranding(row rowScanner) (models.BrandingContract, error) {
	var (
		bc       models.BrandingContract
		campaign sql.NullString
		revenue  sql.NullFloat64
	)
	if err := row.Scan(&bc.ID, &bc.TrainsetID, &bc.PriorityLevel, &bc.BrandName, &campaign,
		&bc.ContractStart, &bc.ContractEnd, &revenue, &bc.CreatedAt); err != nil {
		return models.BrandingContract{}, err
	}
	bc.CampaignName = nullString(campaign)
	if revenue.Valid {
		v := revenue.Float64
		bc.RevenueImpact = &v
	}
	return bc, nil
}

const cleaningColumns = `id, trainset_id, slot_date, cleaning_type, bay_number, status, assigned_crew, created_at`

func scanCleaningSlot(row rowScanner) (models.CleaningSlot, error) {
	var (
		cs   models.CleaningSlot
		crew sql.NullString
	)
	if err := row.Scan(&cs.ID, &cs.TrainsetID, &cs.SlotDate, &cs.CleaningType, &cs.BayNumber,
		&cs.Status, &crew, &cs.CreatedAt); err != nil {
		return models.CleaningSlot{}, err
	}
	cs.AssignedCrew = nullString(crew)
	return cs, nil
}

const mileageColumns = `id, trainset_id, record_date, daily_mileage, cumulative_mileage, route, created_at`

func scanMileage(row rowScanner) (models.MileageRecord, error) {
	var (
		mr    models.MileageRecord
		route sql.NullString
	)
	if err := row.Scan(&mr.ID, &mr.TrainsetID, &mr.Date, &mr.DailyMileage, &mr.CumulativeMileage,
		&route, &mr.CreatedAt); err != nil {
		return models.MileageRecord{}, err
	}
	mr.Route = nullString(route)
	return mr, nil
}

const bayColumns = `bay_number, bay_type, capacity, is_available, maintenance_required, location, updated_at`

func scanBay(row rowScanner) (models.StablingBay, error) {
	var (
		b   models.StablingBay
		loc sql.NullString
	)
	if err := row.Scan(&b.BayNumber, &b.BayType, &b.Capacity, &b.IsAvailable, &b.MaintenanceRequired,
		&loc, &b.UpdatedAt); err != nil {
		return models.StablingBay{}, err
	}
	b.Location = nullString(loc)
	return b, nil
}

func (s *SQLStore) trainsetID(ctx context.Context, number string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id FROM trainsets WHERE number=$1`), number).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup trainset %s: %w", number, err)
	}
	return id, nil
}

func (s *SQLStore) CreateTrainset(ctx context.Context, in TrainsetInput) (models.Trainset, error) {
	if err := in.Validate(); err != nil {
		return models.Trainset{}, err
	}
	now := s.now()
	ts := models.Trainset{
		ID:             uuid.New(),
		Number:         strings.TrimSpace(in.Number),
		CurrentMileage: in.CurrentMileage,
		StablingBay:    in.StablingBay,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	query := `
		INSERT INTO trainsets (id, number, current_mileage, stabling_bay, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`
	if _, err := s.db.ExecContext(ctx, s.q(query), ts.ID, ts.Number, ts.CurrentMileage, ts.StablingBay, ts.CreatedAt, ts.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.Trainset{}, fmt.Errorf("trainset %s: %w", ts.Number, ErrConflict)
		}
		return models.Trainset{}, fmt.Errorf("insert trainset: %w", err)
	}
	return ts, nil
}

func (s *SQLStore) GetTrainset(ctx context.Context, number string) (models.Trainset, error) {
	query := `SELECT ` + trainsetColumns + ` FROM trainsets WHERE number=$1`
	ts, err := scanTrainset(s.db.QueryRowContext(ctx, s.q(query), number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Trainset{}, ErrNotFound
		}
		return models.Trainset{}, fmt.Errorf("get trainset: %w", err)
	}
	return ts, nil
}

func (s *SQLStore) ListTrainsets(ctx context.Context) ([]models.Trainset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trainsetColumns+` FROM trainsets ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list trainsets: %w", err)
	}
	defer rows.Close()

	out := []models.Trainset{}
	for rows.Next() {
		ts, err := scanTrainset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trainset: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateTrainset(ctx context.Context, number string, in TrainsetUpdate) (models.Trainset, error) {
	ts, err := s.GetTrainset(ctx, number)
	if err != nil {
		return models.Trainset{}, err
	}
	if in.CurrentMileage != nil {
		if *in.CurrentMileage < 0 {
			return models.Trainset{}, fmt.Errorf("%w: current_mileage must not be negative", ErrInvalid)
		}
		ts.CurrentMileage = *in.CurrentMileage
	}
	if in.StablingBay != nil {
		ts.StablingBay = in.StablingBay
	}
	if in.ClearStablingBay {
		ts.StablingBay = nil
	}
	ts.UpdatedAt = s.now()

	query := `UPDATE trainsets SET current_mileage=$1, stabling_bay=$2, updated_at=$3 WHERE id=$4`
	if _, err := s.db.ExecContext(ctx, s.q(query), ts.CurrentMileage, ts.StablingBay, ts.UpdatedAt, ts.ID); err != nil {
		return models.Trainset{}, fmt.Errorf("update trainset: %w", err)
	}
	return ts, nil
}

var childTables = []string{"fitness_certificates", "job_cards", "branding_contracts", "cleaning_slots", "mileage_records"}

func (s *SQLStore) DeleteTrainset(ctx context.Context, number string) error {
	id, err := s.trainsetID(ctx, number)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE trainset_id=$1`), id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM trainsets WHERE id=$1`), id); err != nil {
		return fmt.Errorf("delete trainset: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) GetTrainsetDetail(ctx context.Context, number string) (models.TrainsetDetail, error) {
	ts, err := s.GetTrainset(ctx, number)
	if err != nil {
		return models.TrainsetDetail{}, err
	}
	detail := models.TrainsetDetail{Trainset: ts}

	if detail.Certificates, err = listChildren(ctx, s, `SELECT `+certificateColumns+` FROM fitness_certificates WHERE trainset_id=$1 ORDER BY created_at, id`, ts.ID, scanCertificate); err != nil {
		return models.TrainsetDetail{}, fmt.Errorf("list certificates: %w", err)
	}
	if detail.JobCards, err = listChildren(ctx, s, `SELECT `+jobCardColumns+` FROM job_cards WHERE trainset_id=$1 ORDER BY created_at, id`, ts.ID, scanJobCard); err != nil {
		return models.TrainsetDetail{}, fmt.Errorf("list job cards: %w", err)
	}
	if detail.Branding, err = listChildren(ctx, s, `SELECT `+brandingColumns+` FROM branding_contracts WHERE trainset_id=$1 ORDER BY created_at, id`, ts.ID, scanBranding); err != nil {
		return models.TrainsetDetail{}, fmt.Errorf("list branding: %w", err)
	}
	if detail.CleaningSlots, err = listChildren(ctx, s, `SELECT `+cleaningColumns+` FROM cleaning_slots WHERE trainset_id=$1 ORDER BY slot_date, created_at, id`, ts.ID, scanCleaningSlot); err != nil {
		return models.TrainsetDetail{}, fmt.Errorf("list cleaning slots: %w", err)
	}
	if detail.MileageRecords, err = listChildren(ctx, s, `SELECT `+mileageColumns+` FROM mileage_records WHERE trainset_id=$1 ORDER BY record_date, created_at, id`, ts.ID, scanMileage); err != nil {
		return models.TrainsetDetail{}, fmt.Errorf("list mileage: %w", err)
	}

	if ts.StablingBay != nil && *ts.StablingBay != "" {
		bay, err := s.GetStablingBay(ctx, *ts.StablingBay)
		switch {
		case err == nil:
			detail.Bay = &bay
		case !errors.Is(err, ErrNotFound):
			return models.TrainsetDetail{}, err
		}
	}
	return detail, nil
}

func listChildren[T any](ctx context.Context, s *SQLStore, query string, trainsetID uuid.UUID, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), trainsetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLStore) AddCertificate(ctx context.Context, number string, in CertificateInput) (models.FitnessCertificate, error) {
	if err := in.Validate(); err != nil {
		return models.FitnessCertificate{}, err
	}
	tid, err := s.trainsetID(ctx, number)
	if err != nil {
		return models.FitnessCertificate{}, err
	}
	c := models.FitnessCertificate{
		ID: uuid.New(), TrainsetID: tid, CertificateType: in.CertificateType, Status: in.Status,
		CertificateNumber: in.CertificateNumber, IssuingAuthority: in.IssuingAuthority,
		IssueDate: in.IssueDate, ExpiryDate: in.ExpiryDate, Notes: in.Notes, CreatedAt: s.now(),
	}
	query := `
		INSERT INTO fitness_certificates (` + certificateColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	if _, err := s.db.ExecContext(ctx, s.q(query), c.ID, c.TrainsetID, c.CertificateType, c.Status, c.CertificateNumber,
		c.IssuingAuthority, c.IssueDate, c.ExpiryDate, c.Notes, c.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.FitnessCertificate{}, fmt.Errorf("certificate %s: %w", c.CertificateNumber, ErrConflict)
		}
		return models.FitnessCertificate{}, fmt.Errorf("insert certificate: %w", err)
	}
	return c, nil
}

func (s *SQLStore) AddJobCard(ctx context.Context, number string, in JobCardInput) (models.JobCard, error) {
	if err := in.Validate(); err != nil {
		return models.JobCard{}, err
	}
	tid, err := s.trainsetID(ctx, number)
	if err != nil {
		return models.JobCard{}, err
	}
	jc := models.JobCard{
		ID: uuid.New(), TrainsetID: tid, JobCardNumber: in.JobCardNumber, Description: in.Description,
		Status: in.Status, Priority: in.Priority, CreatedDate: in.CreatedDate, DueDate: in.DueDate,
		AssignedTo: in.AssignedTo, CreatedAt: s.now(),
	}
	query := `
		INSERT INTO job_cards (` + jobCardColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	if _, err := s.db.ExecContext(ctx, s.q(query), jc.ID, jc.TrainsetID, jc.JobCardNumber, jc.Description, jc.Status,
		jc.Priority, jc.CreatedDate, jc.DueDate, jc.AssignedTo, jc.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.JobCard{}, fmt.Errorf("job card %s: %w", jc.JobCardNumber, ErrConflict)
		}
		return models.JobCard{}, fmt.Errorf("insert job card: %w", err)
	}
	return jc, nil
}

func (s *SQLStore) UpdateJobCardStatus(ctx context.Context, id uuid.UUID, status models.JobCardStatus) (models.JobCard, error) {
	if !validJobCardStatus(status) {
		return models.JobCard{}, fmt.Errorf("%w: unknown job card status %q", ErrInvalid, status)
	}
	if err := s.execAffecting(ctx, `UPDATE job_cards SET status=$1 WHERE id=$2`, status, id); err != nil {
		return models.JobCard{}, err
	}
	jc, err := scanJobCard(s.db.QueryRowContext(ctx, s.q(`SELECT `+jobCardColumns+` FROM job_cards WHERE id=$1`), id))
	if err != nil {
		return models.JobCard{}, fmt.Errorf("get job card: %w", err)
	}
	return jc, nil
}

func (s *SQLStore) AddBrandingContract(ctx context.Context, number string, in BrandingInput) (models.BrandingContract, error) {
	if err := in.Validate(); err != nil {
		return models.BrandingContract{}, err
	}
	tid, err := s.trainsetID(ctx, number)
	if err != nil {
		return models.BrandingContract{}, err
	}
	bc := models.BrandingContract{
		ID: uuid.New(), TrainsetID: tid, PriorityLevel: in.PriorityLevel, BrandName: in.BrandName,
		CampaignName: in.CampaignName, ContractStart: in.ContractStart, ContractEnd: in.ContractEnd,
		RevenueImpact: in.RevenueImpact, CreatedAt: s.now(),
	}
	query := `
		INSERT INTO branding_contracts (` + brandingColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	if _, err := s.db.ExecContext(ctx, s.q(query), bc.ID, bc.TrainsetID, bc.PriorityLevel, bc.BrandName, bc.CampaignName,
		bc.ContractStart, bc.ContractEnd, bc.RevenueImpact, bc.CreatedAt); err != nil {
		return models.BrandingContract{}, fmt.Errorf("insert branding contract: %w", err)
	}
	return bc, nil
}

func (s *SQLStore) AddCleaningSlot(ctx context.Context, number string, in CleaningSlotInput) (models.CleaningSlot, error) {
	if err := in.Validate(); err != nil {
		return models.CleaningSlot{}, err
	}
	tid, err := s.trainsetID(ctx, number)
	if err != nil {
		return models.CleaningSlot{}, err
	}
	cs := models.CleaningSlot{
		ID: uuid.New(), TrainsetID: tid, SlotDate: in.SlotDate, CleaningType: in.CleaningType,
		BayNumber: in.BayNumber, Status: in.Status, AssignedCrew: in.AssignedCrew, CreatedAt: s.now(),
	}
	query := `
		INSERT INTO cleaning_slots (` + cleaningColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	if _, err := s.db.ExecContext(ctx, s.q(query), cs.ID, cs.TrainsetID, cs.SlotDate, cs.CleaningType, cs.BayNumber,
		cs.Status, cs.AssignedCrew, cs.CreatedAt); err != nil {
		return models.CleaningSlot{}, fmt.Errorf("insert cleaning slot: %w", err)
	}
	return cs, nil
}

func (s *SQLStore) UpdateCleaningSlotStatus(ctx context.Context, id uuid.UUID, status models.CleaningStatus) (models.CleaningSlot, error) {
	if !validCleaningStatus(status) {
		return models.CleaningSlot{}, fmt.Errorf("%w: unknown cleaning status %q", ErrInvalid, status)
	}
	if err := s.execAffecting(ctx, `UPDATE cleaning_slots SET status=$1 WHERE id=$2`, status, id); err != nil {
		return models.CleaningSlot{}, err
	}
	cs, err := scanCleaningSlot(s.db.QueryRowContext(ctx, s.q(`SELECT `+cleaningColumns+` FROM cleaning_slots WHERE id=$1`), id))
	if err != nil {
		return models.CleaningSlot{}, fmt.Errorf("get cleaning slot: %w", err)
	}
	return cs, nil
}

// RecordMileage stores a mileage entry and moves the trainset's current
// mileage to its cumulative value.
func (s *SQLStore) RecordMileage(ctx context.Context, number string, in MileageInput) (models.MileageRecord, error) {
	if err := in.Validate(); err != nil {
		return models.MileageRecord{}, err
	}
	tid, err := s.trainsetID(ctx, number)
	if err != nil {
		return models.MileageRecord{}, err
	}
	now := s.now()
	mr := models.MileageRecord{
		ID: uuid.New(), TrainsetID: tid, Date: in.Date, DailyMileage: in.DailyMileage,
		CumulativeMileage: in.CumulativeMileage, Route: in.Route, CreatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.MileageRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO mileage_records (` + mileageColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	if _, err := tx.ExecContext(ctx, s.q(query), mr.ID, mr.TrainsetID, mr.Date, mr.DailyMileage, mr.CumulativeMileage, mr.Route, mr.CreatedAt); err != nil {
		return models.MileageRecord{}, fmt.Errorf("insert mileage record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE trainsets SET current_mileage=$1, updated_at=$2 WHERE id=$3`), mr.CumulativeMileage, now, tid); err != nil {
		return models.MileageRecord{}, fmt.Errorf("update trainset mileage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.MileageRecord{}, fmt.Errorf("commit mileage: %w", err)
	}
	return mr, nil
}

var recordTables = map[RecordKind]string{
	KindCertificate:  "fitness_certificates",
	KindJobCard:      "job_cards",
	KindBranding:     "branding_contracts",
	KindCleaningSlot: "cleaning_slots",
}

func (s *SQLStore) DeleteRecord(ctx context.Context, kind RecordKind, id uuid.UUID) error {
	table, ok := recordTables[kind]
	if !ok {
		return fmt.Errorf("%w: unknown record kind %q", ErrInvalid, kind)
	}
	return s.execAffecting(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
}

func (s *SQLStore) execAffecting(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) UpsertStablingBay(ctx context.Context, in StablingBayInput) (models.StablingBay, error) {
	if err := in.Validate(); err != nil {
		return models.StablingBay{}, err
	}
	b := models.StablingBay{
		BayNumber: in.BayNumber, BayType: in.BayType, Capacity: in.Capacity, IsAvailable: in.IsAvailable,
		MaintenanceRequired: in.MaintenanceRequired, Location: in.Location, UpdatedAt: s.now(),
	}
	query := `
		INSERT INTO stabling_bays (` + bayColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (bay_number) DO UPDATE SET
			bay_type=excluded.bay_type,
			capacity=excluded.capacity,
			is_available=excluded.is_available,
			maintenance_required=excluded.maintenance_required,
			location=excluded.location,
			updated_at=excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, s.q(query), b.BayNumber, b.BayType, b.Capacity, b.IsAvailable,
		b.MaintenanceRequired, b.Location, b.UpdatedAt); err != nil {
		return models.StablingBay{}, fmt.Errorf("upsert stabling bay: %w", err)
	}
	return b, nil
}

func (s *SQLStore) GetStablingBay(ctx context.Context, bayNumber string) (models.StablingBay, error) {
	b, err := scanBay(s.db.QueryRowContext(ctx, s.q(`SELECT `+bayColumns+` FROM stabling_bays WHERE bay_number=$1`), bayNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StablingBay{}, ErrNotFound
		}
		return models.StablingBay{}, fmt.Errorf("get stabling bay: %w", err)
	}
	return b, nil
}

func (s *SQLStore) ListStablingBays(ctx context.Context) ([]models.StablingBay, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bayColumns+` FROM stabling_bays ORDER BY bay_number`)
	if err != nil {
		return nil, fmt.Errorf("list stabling bays: %w", err)
	}
	defer rows.Close()

	out := []models.StablingBay{}
	for rows.Next() {
		b, err := scanBay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stabling bay: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ClearAll removes every record. Used by the data reset endpoint and the
// seeder.
func (s *SQLStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range append(append([]string{}, childTables...), "trainsets", "stabling_bays") {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
