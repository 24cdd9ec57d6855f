package db

import (
	"strings"

	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	if strings.Contains(msg, "duplicate key value") {
		return true
	}
	return strings.Contains(msg, "UNIQUE constraint failed")
}

// StorageCode picks the error code for a failed storage operation. Missing
// columns surface as SCHEMA_NOT_READY so operators know to run migrations.
func StorageCode(err error) pkgerrors.Code {
	if IsUndefinedColumn(err) {
		return pkgerrors.CodeSchemaNotReady
	}
	return pkgerrors.CodeDependency
}

// IsUndefinedColumn reports whether the provided error references a column
// missing from the live schema, which signals migrations have not been run
// against this database yet.
func IsUndefinedColumn(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLSTATE 42703") {
		return true
	}
	if strings.Contains(msg, "no such column") {
		return true
	}
	return strings.Contains(msg, "column") && strings.Contains(msg, "does not exist")
}
