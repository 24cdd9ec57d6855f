package db

import (
	"errors"
	"testing"

	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not be a unique violation")
	}
	pg := errors.New(`ERROR: duplicate key value violates unique constraint "idx_serial_registries_serial_number" (SQLSTATE 23505)`)
	if !IsUniqueViolation(pg, "") {
		t.Fatal("expected postgres duplicate key to match")
	}
	if !IsUniqueViolation(pg, "idx_serial_registries_serial_number") {
		t.Fatal("expected constraint name to match")
	}
	if IsUniqueViolation(pg, "idx_other") {
		t.Fatal("unexpected match for unrelated constraint")
	}
	lite := errors.New("UNIQUE constraint failed: serial_registries.serial_number")
	if !IsUniqueViolation(lite, "") {
		t.Fatal("expected sqlite unique failure to match")
	}
}

func TestIsUndefinedColumn(t *testing.T) {
	if IsUndefinedColumn(nil) {
		t.Fatal("nil error should not be an undefined column")
	}
	pg := errors.New(`ERROR: column "sla_due_at" of relation "rma_cases" does not exist (SQLSTATE 42703)`)
	if !IsUndefinedColumn(pg) {
		t.Fatal("expected postgres undefined column to match")
	}
	lite := errors.New("no such column: sla_due_at")
	if !IsUndefinedColumn(lite) {
		t.Fatal("expected sqlite missing column to match")
	}
	if IsUndefinedColumn(errors.New("connection refused")) {
		t.Fatal("unrelated error should not match")
	}
}

func TestStorageCode(t *testing.T) {
	missing := errors.New("no such column: sla_due_at")
	if got := StorageCode(missing); got != pkgerrors.CodeSchemaNotReady {
		t.Fatalf("expected schema-not-ready code, got %s", got)
	}
	if got := StorageCode(errors.New("connection refused")); got != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", got)
	}
}
