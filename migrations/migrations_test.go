package migrations

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestAll(t *testing.T) {
	ms, err := All()
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) == 0 || ms[0].Version != "001_init" {
		t.Fatalf("migrations = %+v", ms)
	}
	if !strings.Contains(ms[0].SQL, "UNIQUE (transaction_id)") {
		t.Error("orders must be unique on transaction_id")
	}
}

func TestApply(t *testing.T) {
	ms := []Migration{{Version: "001_a", SQL: "CREATE TABLE a ()"}, {Version: "002_b", SQL: "CREATE TABLE b ()"}}

	t.Run("Given one applied migration When applying Then only the rest run", func(t *testing.T) {
		db, mock, _ := sqlmock.New()
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_a"))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b ()")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_b").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := Apply(context.Background(), sqlx.NewDb(db, "postgres"), ms)
		if err != nil {
			t.Fatal(err)
		}
		if len(applied) != 1 || applied[0] != "002_b" {
			t.Errorf("applied = %v", applied)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("Given a failing migration When applying Then it rolls back", func(t *testing.T) {
		db, mock, _ := sqlmock.New()
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a ()")).WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		if _, err := Apply(context.Background(), sqlx.NewDb(db, "postgres"), ms); err == nil {
			t.Fatal("expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}
