package shares

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var shareCols = []string{"id", "entity_id", "entity_type", "owner_id", "recipient_id", "wrapped_dek",
	"can_view", "can_combine", "can_reports", "created_at"}

func TestPostgresUpsert_ReturnsStoredID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	sh := sampleShare("acc-1", "bob")
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+data_shares.*ON\s+CONFLICT\s+\(entity_id,\s*entity_type,\s*recipient_id\)\s+DO\s+UPDATE.*RETURNING\s+id,\s*created_at\s*$`).
		WithArgs(sqlmock.AnyArg(), "acc-1", "account", "alice", "bob", sh.WrappedDEK, true, false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("existing-id", time.Now()))

	if err := repo.Upsert(context.Background(), sh); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if sh.ID != "existing-id" {
		t.Fatalf("ID = %q, want existing-id", sh.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPostgresGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+data_shares\s+WHERE\s+entity_id\s*=\s*\$1\s+AND\s+entity_type\s*=\s*\$2\s+AND\s+recipient_id\s*=\s*\$3\s*$`).
		WithArgs("acc-1", "account", "bob").
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s1", "acc-1", "account", "alice", "bob", []byte("w"), true, true, false, time.Now()))
	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+data_shares`).
		WillReturnError(sql.ErrNoRows)

	sh, err := repo.Get(context.Background(), models.EntityAccount, "acc-1", "bob")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !sh.Permissions.Combine || sh.Permissions.Reports {
		t.Fatalf("unexpected permissions %+v", sh.Permissions)
	}
	if _, err := repo.Get(context.Background(), models.EntityAccount, "acc-1", "carol"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestPostgresListByRecipient(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+data_shares\s+WHERE\s+recipient_id\s*=\s*\$1`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s1", "acc-1", "account", "alice", "bob", []byte("w"), true, false, false, now).
			AddRow("s2", "tx-9", "transaction", "alice", "bob", []byte("w"), true, false, true, now))

	list, err := repo.ListByRecipient(context.Background(), "bob")
	if err != nil {
		t.Fatalf("ListByRecipient error: %v", err)
	}
	if len(list) != 2 || list[1].EntityType != models.EntityTransaction {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPostgresDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+data_shares\s+WHERE\s+entity_id\s*=\s*\$1\s+AND\s+entity_type\s*=\s*\$2\s+AND\s+recipient_id`).
		WithArgs("acc-1", "account", "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+data_shares\s+WHERE\s+entity_id\s*=\s*\$1\s+AND\s+entity_type\s*=\s*\$2\s*$`).
		WithArgs("acc-1", "account").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.Delete(context.Background(), models.EntityAccount, "acc-1", "bob"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	n, err := repo.DeleteByEntity(context.Background(), models.EntityAccount, "acc-1")
	if err != nil || n != 3 {
		t.Fatalf("DeleteByEntity = %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
