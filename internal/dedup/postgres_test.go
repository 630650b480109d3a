package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresWindow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	w := newPostgresWindowWithExec(mock, 5*time.Minute)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1 FROM processed_messages").WithArgs("wamid.1", float64(300)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	seen, err := w.Seen(ctx, "wamid.1")
	if err != nil || !seen {
		t.Fatalf("expected seen row, got %v %v", seen, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_messages").WithArgs("wamid.miss", float64(300)).
		WillReturnError(pgx.ErrNoRows)
	seen, err = w.Seen(ctx, "wamid.miss")
	if err != nil || seen {
		t.Fatalf("expected missing row, got %v %v", seen, err)
	}

	mock.ExpectExec("INSERT INTO processed_messages").WithArgs("wamid.new", float64(300)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	claimed, err := w.Claim(ctx, "wamid.new")
	if err != nil || !claimed {
		t.Fatalf("expected claim, got %v %v", claimed, err)
	}

	mock.ExpectExec("INSERT INTO processed_messages").WithArgs("wamid.new", float64(300)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	claimed, err = w.Claim(ctx, "wamid.new")
	if err != nil || claimed {
		t.Fatalf("expected duplicate refused, got %v %v", claimed, err)
	}

	mock.ExpectExec("INSERT INTO processed_messages").WithArgs("wamid.rec").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := w.Record(ctx, "wamid.rec"); err != nil {
		t.Fatalf("record: %v", err)
	}

	mock.ExpectExec("DELETE FROM processed_messages").WithArgs(float64(300)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	n, err := w.Purge(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 purged, got %d %v", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresWindowClaimError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	w := newPostgresWindowWithExec(mock, time.Minute)
	mock.ExpectExec("INSERT INTO processed_messages").WillReturnError(errors.New("conn reset"))
	if _, err := w.Claim(context.Background(), "wamid.x"); err == nil {
		t.Fatal("expected claim error")
	}
}
