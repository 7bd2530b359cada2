package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/akhramovs/tempora/internal/common"
	"github.com/akhramovs/tempora/internal/server/models"
)

func newCalendarStoreWithMock(t *testing.T) (*CalendarStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewCalendarStore(db), mock, db
}

func calendarRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "name", "color", "is_default", "source", "external_id",
		"created_at", "updated_at", "deleted_at",
	})
}

func TestCalendarSelectAll_ScopedToUser(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM calendars WHERE user_id = \$1 ORDER BY created_at`).
		WithArgs("u1").
		WillReturnRows(calendarRows().
			AddRow("c1", "u1", "Work", "#3B82F6", true, "local", nil, now, now, nil).
			AddRow("c2", "u1", "Home", "#10B981", false, "local", nil, now, now, nil))

	got, err := repo.SelectAll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 calendars, got %d", len(got))
	}
	if got[0].Name != "Work" || got[0].UserID != "u1" {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCalendarSelectByID_NotFound(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM calendars WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(calendarRows())

	_, err := repo.SelectByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCalendarInsert_InjectsUserAndDefaultsSource(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO calendars .* RETURNING`).
		WithArgs(sqlmock.AnyArg(), "u1", "Work", "#3B82F6", false, "local", nil).
		WillReturnRows(calendarRows().
			AddRow("c1", "u1", "Work", "#3B82F6", false, "local", nil, now, now, nil))

	got, err := repo.Insert(context.Background(), "u1", models.CalendarForm{Name: "Work", Color: "#3B82F6"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || got.Source != "local" {
		t.Fatalf("unexpected inserted row: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCalendarInsertBulk_EmptyInputSkipsDatabase(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	got, err := repo.InsertBulk(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d rows", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCalendarInsertBulk_OneStatementManyRows(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	now := time.Now()
	ext1, ext2 := "g-1", "g-2"
	mock.ExpectQuery(`INSERT INTO calendars .*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\), \(\$8, \$9, \$10, \$11, \$12, \$13, \$14\) RETURNING`).
		WillReturnRows(calendarRows().
			AddRow("c1", "u1", "Team", "#3B82F6", false, "google", ext1, now, now, nil).
			AddRow("c2", "u1", "Family", "#10B981", false, "google", ext2, now, now, nil))

	forms := []models.CalendarForm{
		{Name: "Team", Color: "#3B82F6", Source: "google", ExternalID: &ext1},
		{Name: "Family", Color: "#10B981", Source: "google", ExternalID: &ext2},
	}
	got, err := repo.InsertBulk(context.Background(), "u1", forms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCalendarUpdate_NotFound(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE calendars SET`).
		WillReturnRows(calendarRows())

	name := "Renamed"
	_, err := repo.Update(context.Background(), "missing", models.CalendarPatch{Name: &name})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCalendarUpdate_PartialPatch(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	now := time.Now()
	name := "Renamed"
	mock.ExpectQuery(`UPDATE calendars SET.*COALESCE\(\$2, name\)`).
		WithArgs("c1", &name, nil, nil).
		WillReturnRows(calendarRows().
			AddRow("c1", "u1", "Renamed", "#3B82F6", false, "local", nil, now, now, nil))

	got, err := repo.Update(context.Background(), "c1", models.CalendarPatch{Name: &name})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Renamed" {
		t.Fatalf("expected renamed calendar, got %+v", got)
	}
}

func TestCalendarDelete_ReturnsLastState(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`DELETE FROM calendars WHERE id = \$1 RETURNING`).
		WithArgs("c1").
		WillReturnRows(calendarRows().
			AddRow("c1", "u1", "Work", "#3B82F6", false, "local", nil, now, now, nil))

	got, err := repo.Delete(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("expected owner in deleted row, got %+v", got)
	}
}

func TestCalendarSelectExternalIDs(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT external_id FROM calendars WHERE user_id = \$1 AND source = \$2 AND external_id IS NOT NULL`).
		WithArgs("u1", "google").
		WillReturnRows(sqlmock.NewRows([]string{"external_id"}).AddRow("g-1").AddRow("g-2"))

	got, err := repo.SelectExternalIDs(context.Background(), "u1", "google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "g-1" {
		t.Fatalf("unexpected external ids: %v", got)
	}
}

func TestCalendarDeleteAll(t *testing.T) {
	repo, mock, db := newCalendarStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM calendars WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteAll(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
