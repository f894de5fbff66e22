package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Inspection is the log-only view of an error: its typed code, the unwrap
// chain and, when the root cause came from Postgres, the server diagnostics.
type Inspection struct {
	Message string
	Code    Code
	Chain   []string
	PG      *PGDiagnostics
}

// PGDiagnostics mirrors the fields both Postgres drivers expose.
type PGDiagnostics struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Inspect walks err for logging. It never feeds client responses.
func Inspect(err error) Inspection {
	if err == nil {
		return Inspection{}
	}
	in := Inspection{Message: err.Error(), PG: pgDiagnostics(err)}
	if typed := As(err); typed != nil {
		in.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		in.Chain = append(in.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return in
}

// LogFields flattens the inspection for structured logging, omitting the
// Postgres block when there is none.
func (in Inspection) LogFields() map[string]any {
	fields := map[string]any{
		"error":       in.Message,
		"error_code":  in.Code,
		"error_chain": in.Chain,
	}
	if in.PG != nil {
		fields["pg_code"] = in.PG.Code
		fields["pg_constraint"] = in.PG.Constraint
		fields["pg_table"] = in.PG.Table
		fields["pg_column"] = in.PG.Column
		fields["pg_detail"] = in.PG.Detail
		fields["pg_message"] = in.PG.Message
	}
	return fields
}

func pgDiagnostics(err error) *PGDiagnostics {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGDiagnostics{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGDiagnostics{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
