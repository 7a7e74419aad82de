package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
)

// RepositoryParams bundles the dependencies shared by all repositories
type RepositoryParams struct {
	Client postgres.IClient
	Logger *logger.Logger
}

const pqUniqueViolation = "23505"

// wrapDBError maps driver errors onto domain errors. sql.ErrNoRows
// becomes ErrNotFound and unique violations become ErrAlreadyExists.
func wrapDBError(err error, hint string) error {
	if err == nil {
		return nil
	}
	if ierr.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHint(hint).
			Mark(ierr.ErrNotFound)
	}
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ierr.WithError(err).
			WithHint(hint).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrDatabase)
}

// pqStringArray adapts a string slice for ANY($n) clauses
func pqStringArray(values []string) interface{} {
	return pq.Array(values)
}

// requireRowAffected turns zero-row updates into ErrNotFound
func requireRowAffected(result sql.Result, hint string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint(hint).
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError("no rows affected").
			WithHint(hint).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// marshalJSON serializes map columns; nil maps store SQL NULL
func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to serialize column").
			Mark(ierr.ErrSystem)
	}
	return raw, nil
}

func unmarshalJSON(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to deserialize column").
			Mark(ierr.ErrSystem)
	}
	return nil
}
