package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// DBDetail is the driver-level part of a database failure.
type DBDetail struct {
	SQLState   string `json:"sql_state,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error chain for logging. It is never sent to clients.
type ErrorDump struct {
	Message string    `json:"message"`
	Code    Code      `json:"code,omitempty"`
	Chain   []string  `json:"chain,omitempty"`
	DB      *DBDetail `json:"db,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error(), DB: dbDetail(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields renders the dump as structured log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.DB != nil {
		fields["sql_state"] = d.DB.SQLState
		fields["db_constraint"] = d.DB.Constraint
		fields["db_table"] = d.DB.Table
		fields["db_detail"] = d.DB.Detail
	}
	return fields
}

// pgx backs gorm's postgres driver; pq errors come from goose runs on a lib/pq handle.
func dbDetail(err error) *DBDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBDetail{
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
		return &DBDetail{
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
