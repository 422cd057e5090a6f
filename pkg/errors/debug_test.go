package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPgxDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "transactions_status_check", TableName: "transactions"}
	err := Wrap(CodeInternal, fmt.Errorf("update: %w", pgErr), "update transaction")

	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code, got %q", d.Code)
	}
	if d.DB == nil || d.DB.SQLState != "23514" || d.DB.Constraint != "transactions_status_check" {
		t.Fatalf("expected pgx detail, got %+v", d.DB)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", d.Chain)
	}
	if d.Fields()["db_table"] != "transactions" {
		t.Fatalf("expected db_table field, got %v", d.Fields())
	}
}

func TestDumpCapturesPqDetail(t *testing.T) {
	d := Dump(&pq.Error{Code: "23505", Constraint: "items_sku_key"})
	if d.DB == nil || d.DB.SQLState != "23505" || d.DB.Constraint != "items_sku_key" {
		t.Fatalf("expected pq detail, got %+v", d.DB)
	}
}

func TestDumpWithoutDatabaseError(t *testing.T) {
	d := Dump(New(CodeNotFound, "item not found"))
	if d.DB != nil {
		t.Fatalf("expected no db detail, got %+v", d.DB)
	}
	if _, ok := d.Fields()["sql_state"]; ok {
		t.Fatalf("sql_state should be absent")
	}
	if got := Dump(nil); got.Message != "" {
		t.Fatalf("expected empty dump for nil")
	}
}
