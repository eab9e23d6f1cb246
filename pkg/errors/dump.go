package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is a log-friendly view of an error chain.
type ErrorDump struct {
	Message   string    `json:"message"`
	Code      Code      `json:"code,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Chain     []string  `json:"chain,omitempty"`
	DB        *DBFields `json:"db,omitempty"`
}

// DBFields holds the Postgres diagnostics found in the chain, from either
// the pgx or lib/pq driver.
type DBFields struct {
	Driver     string `json:"driver"`
	SQLState   string `json:"sqlstate"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// LogFields flattens the diagnostics into db_* log keys.
func (f *DBFields) LogFields() map[string]any {
	if f == nil {
		return nil
	}
	return map[string]any{
		"db_driver":     f.Driver,
		"db_sqlstate":   f.SQLState,
		"db_constraint": f.Constraint,
		"db_table":      f.Table,
		"db_column":     f.Column,
		"db_detail":     f.Detail,
		"db_message":    f.Message,
	}
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		d.Retryable = MetadataFor(d.Code).Retryable
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.DB = dbFields(err)
	return d
}

func dbFields(err error) *DBFields {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBFields{
			Driver:     "pgx",
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBFields{
			Driver:     "pq",
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
