package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metro-depot/fleet/induction/internal/models"
)

func newMockStore(t *testing.T, dialect Dialect) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewSQLStore(db, dialect)
	fixed := time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s, mock
}

var trainsetCols = []string{"id", "number", "current_mileage", "stabling_bay", "created_at", "updated_at"}

func TestSQLStoreCreateTrainset(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)

	mock.ExpectExec("INSERT INTO trainsets").
		WithArgs(sqlmock.AnyArg(), "TS-2003", 1200.0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ts, err := s.CreateTrainset(context.Background(), TrainsetInput{Number: "TS-2003", CurrentMileage: 1200})
	require.NoError(t, err)
	assert.Equal(t, "TS-2003", ts.Number)
	assert.Equal(t, time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC), ts.CreatedAt)

	mock.ExpectExec("INSERT INTO trainsets").WillReturnError(&pq.Error{Code: "23505"})
	_, err = s.CreateTrainset(context.Background(), TrainsetInput{Number: "TS-2003"})
	assert.ErrorIs(t, err, ErrConflict)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSQLStoreGetTrainsetNotFound(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)
	mock.ExpectQuery(regexp.QuoteMeta("FROM trainsets WHERE number=$1")).
		WithArgs("TS-404").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetTrainset(context.Background(), "TS-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSQLiteRebindsPlaceholders(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	id := uuid.New()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM trainsets WHERE number=?1")).
		WithArgs("TS-1").
		WillReturnRows(sqlmock.NewRows(trainsetCols).AddRow(id.String(), "TS-1", 500.0, "Bay-02", created, created))

	ts, err := s.GetTrainset(context.Background(), "TS-1")
	require.NoError(t, err)
	assert.Equal(t, id, ts.ID)
	require.NotNil(t, ts.StablingBay)
	assert.Equal(t, "Bay-02", *ts.StablingBay)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGetTrainsetDetail(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)
	id := uuid.New()
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM trainsets WHERE number").
		WithArgs("TS-1").
		WillReturnRows(sqlmock.NewRows(trainsetCols).AddRow(id.String(), "TS-1", 120000.0, "Bay-04", day, day))
	mock.ExpectQuery("FROM fitness_certificates WHERE trainset_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "trainset_id", "certificate_type", "status", "certificate_number",
			"issuing_authority", "issue_date", "expiry_date", "notes", "created_at"}).
			AddRow(uuid.NewString(), id.String(), "Signalling", "Valid", "SG-1", "CMRS", day.AddDate(-1, 0, 0), day.AddDate(0, 0, 3), nil, day))
	mock.ExpectQuery("FROM job_cards WHERE trainset_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "trainset_id", "job_card_number", "description", "status",
			"priority", "created_date", "due_date", "assigned_to", "created_at"}).
			AddRow(uuid.NewString(), id.String(), "JC-1", "Bogie check", "Open", "High", day, nil, "crew-a", day))
	mock.ExpectQuery("FROM branding_contracts WHERE trainset_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "trainset_id", "priority_level", "brand_name", "campaign_name",
			"contract_start", "contract_end", "revenue_impact", "created_at"}).
			AddRow(uuid.NewString(), id.String(), "Medium", "MetroMart", nil, day, day.AddDate(0, 1, 0), 2500.5, day))
	mock.ExpectQuery(regexp.QuoteMeta("FROM cleaning_slots WHERE trainset_id=$1 ORDER BY slot_date, created_at, id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "trainset_id", "slot_date", "cleaning_type", "bay_number", "status", "assigned_crew", "created_at"}))
	mock.ExpectQuery("FROM mileage_records WHERE trainset_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "trainset_id", "record_date", "daily_mileage", "cumulative_mileage", "route", "created_at"}))
	mock.ExpectQuery("FROM stabling_bays WHERE bay_number").
		WithArgs("Bay-04").
		WillReturnRows(sqlmock.NewRows([]string{"bay_number", "bay_type", "capacity", "is_available", "maintenance_required", "location", "updated_at"}).
			AddRow("Bay-04", "Standard", 1, true, false, nil, day))

	d, err := s.GetTrainsetDetail(context.Background(), "TS-1")
	require.NoError(t, err)
	require.Len(t, d.Certificates, 1)
	assert.Equal(t, "Signalling", d.Certificates[0].CertificateType)
	assert.Nil(t, d.Certificates[0].Notes)
	require.Len(t, d.JobCards, 1)
	assert.Equal(t, models.PriorityHigh, d.JobCards[0].Priority)
	assert.Nil(t, d.JobCards[0].DueDate)
	require.NotNil(t, d.JobCards[0].AssignedTo)
	require.Len(t, d.Branding, 1)
	require.NotNil(t, d.Branding[0].RevenueImpact)
	assert.Equal(t, 2500.5, *d.Branding[0].RevenueImpact)
	assert.Empty(t, d.CleaningSlots)
	assert.NotNil(t, d.CleaningSlots)
	require.NotNil(t, d.Bay)
	assert.True(t, d.Bay.IsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreRecordMileageUpdatesTrainset(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM trainsets WHERE number=$1")).
		WithArgs("TS-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mileage_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE trainsets SET current_mileage=$1")).
		WithArgs(101500.0, sqlmock.AnyArg(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mr, err := s.RecordMileage(context.Background(), "TS-1", MileageInput{
		Date: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), DailyMileage: 410, CumulativeMileage: 101500,
	})
	require.NoError(t, err)
	assert.Equal(t, id, mr.TrainsetID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreDeleteRecordNotFound(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM job_cards WHERE id=$1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteRecord(context.Background(), KindJobCard, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteRecord(context.Background(), RecordKind("photos"), uuid.New())
	assert.ErrorIs(t, err, ErrInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreUpsertBayUsesOnConflict(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (bay_number) DO UPDATE")).
		WithArgs("Bay-07", "Inspection", 1, false, true, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	b, err := s.UpsertStablingBay(context.Background(), StablingBayInput{
		BayNumber: "Bay-07", BayType: "Inspection", MaintenanceRequired: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreMigrate(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectSQLite} {
		t.Run(string(d), func(t *testing.T) {
			s, mock := newMockStore(t, d)
			for range schema(d) {
				mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
			}
			require.NoError(t, s.Migrate(context.Background()))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
	assert.Contains(t, schema(DialectPostgres)[0], "TIMESTAMPTZ")
	assert.NotContains(t, schema(DialectSQLite)[0], "TIMESTAMPTZ")
}

func TestSQLStoreClearAll(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)
	mock.ExpectBegin()
	for _, table := range []string{"fitness_certificates", "job_cards", "branding_contracts", "cleaning_slots", "mileage_records", "trainsets", "stabling_bays"} {
		mock.ExpectExec("DELETE FROM " + table).WillReturnResult(sqlmock.NewResult(0, 3))
	}
	mock.ExpectCommit()
	require.NoError(t, s.ClearAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
