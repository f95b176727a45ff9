package pgkit

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorCode represents a database error classification
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeForeignKey       ErrorCode = "FOREIGN_KEY"
	CodeCheckViolation   ErrorCode = "CHECK_VIOLATION"
	CodeNotNullViolation ErrorCode = "NOT_NULL"
	CodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeSerialization    ErrorCode = "SERIALIZATION"
	CodeDeadlock         ErrorCode = "DEADLOCK"
	CodeUnknown          ErrorCode = "UNKNOWN"

	// Pool and session lifecycle
	CodeNotInitialized ErrorCode = "NOT_INITIALIZED"
	CodePoolExhausted  ErrorCode = "POOL_EXHAUSTED"
	CodePoolClosed     ErrorCode = "POOL_CLOSED"
	CodeSessionClosed  ErrorCode = "SESSION_CLOSED"
	CodeNotRegistered  ErrorCode = "NOT_REGISTERED"
	CodeTransaction    ErrorCode = "TRANSACTION"

	// Record mapping
	CodeFieldNotFound ErrorCode = "FIELD_NOT_FOUND"
	CodeKeyMapping    ErrorCode = "KEY_MAPPING"
	CodeInvalidRecord ErrorCode = "INVALID_RECORD"
)

// Sentinel errors for quick checks
var (
	ErrNotFound         = errors.New("pgkit: record not found")
	ErrDuplicate        = errors.New("pgkit: duplicate key violation")
	ErrForeignKey       = errors.New("pgkit: foreign key violation")
	ErrCheckViolation   = errors.New("pgkit: check constraint violation")
	ErrNotNullViolation = errors.New("pgkit: not null violation")
	ErrConnection       = errors.New("pgkit: connection failed")
	ErrTimeout          = errors.New("pgkit: operation timeout")
	ErrSerialization    = errors.New("pgkit: serialization failure")
	ErrDeadlock         = errors.New("pgkit: deadlock detected")

	ErrNotInitialized = errors.New("pgkit: pool not initialized")
	ErrPoolExhausted  = errors.New("pgkit: connection pool exhausted")
	ErrPoolClosed     = errors.New("pgkit: pool is closed")
	ErrSessionClosed  = errors.New("pgkit: session is closed")
	ErrNotRegistered  = errors.New("pgkit: no pool registered")
	ErrTransaction    = errors.New("pgkit: transaction failed")

	ErrFieldNotFound = errors.New("pgkit: record field not found")
	ErrKeyMapping    = errors.New("pgkit: record key mapping failed")
	ErrInvalidRecord = errors.New("pgkit: invalid record")
)

// Error is a rich database error with context
type Error struct {
	Code       ErrorCode // Error classification
	Message    string    // Human-readable message
	Op         string    // Operation that failed (e.g., "GetSession", "Populate")
	Table      string    // Table or record type name if known
	Column     string    // Column or field name if known
	Constraint string    // Constraint name if applicable
	Detail     string    // Additional detail from PostgreSQL
	Hint       string    // Hint from PostgreSQL
	Query      string    // Query that failed (may be empty for security)
	Cause      error     // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("pgkit: %s", e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("pgkit.%s: %s", e.Op, e.Message)
	}
	if e.Table != "" {
		msg += fmt.Sprintf(" (table: %s)", e.Table)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" (column: %s)", e.Column)
	}
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint: %s)", e.Constraint)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for sentinel error matching
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == ErrNotFound
	case CodeDuplicate:
		return target == ErrDuplicate
	case CodeForeignKey:
		return target == ErrForeignKey
	case CodeCheckViolation:
		return target == ErrCheckViolation
	case CodeNotNullViolation:
		return target == ErrNotNullViolation
	case CodeConnectionFailed:
		return target == ErrConnection
	case CodeTimeout:
		return target == ErrTimeout
	case CodeSerialization:
		return target == ErrSerialization
	case CodeDeadlock:
		return target == ErrDeadlock
	case CodeNotInitialized:
		return target == ErrNotInitialized
	case CodePoolExhausted:
		return target == ErrPoolExhausted
	case CodePoolClosed:
		return target == ErrPoolClosed
	case CodeSessionClosed:
		return target == ErrSessionClosed
	case CodeNotRegistered:
		return target == ErrNotRegistered
	case CodeTransaction:
		return target == ErrTransaction
	case CodeFieldNotFound:
		return target == ErrFieldNotFound
	case CodeKeyMapping:
		return target == ErrKeyMapping
	case CodeInvalidRecord:
		return target == ErrInvalidRecord
	}
	return false
}

// wrapError converts a raw error to a rich Error
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}

	// Already wrapped
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}

	// Check for "no rows" error
	if err.Error() == "sql: no rows in result set" {
		return &Error{
			Code:    CodeNotFound,
			Message: "record not found",
			Op:      op,
			Cause:   err,
		}
	}

	// PostgreSQL specific errors
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return wrapPgError(pgErr, op)
	}

	// Generic wrapping
	return &Error{
		Code:    CodeUnknown,
		Message: err.Error(),
		Op:      op,
		Cause:   err,
	}
}

// wrapPgError converts PostgreSQL errors to rich errors
func wrapPgError(pgErr *pgconn.PgError, op string) *Error {
	e := &Error{
		Op:         op,
		Table:      pgErr.TableName,
		Column:     pgErr.ColumnName,
		Constraint: pgErr.ConstraintName,
		Detail:     pgErr.Detail,
		Hint:       pgErr.Hint,
		Cause:      pgErr,
	}

	// Map PostgreSQL error codes
	// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
	switch pgErr.Code {
	case "23505": // unique_violation
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
	case "23503": // foreign_key_violation
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
	case "23502": // not_null_violation
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
	case "23514": // check_violation
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
	case "40001": // serialization_failure
		e.Code = CodeSerialization
		e.Message = "serialization failure, retry transaction"
	case "40P01": // deadlock_detected
		e.Code = CodeDeadlock
		e.Message = "deadlock detected"
	case "57014": // query_canceled (timeout)
		e.Code = CodeTimeout
		e.Message = "query was cancelled due to timeout"
	case "08000", "08003", "08006": // connection errors
		e.Code = CodeConnectionFailed
		e.Message = "database connection failed"
	default:
		e.Code = CodeUnknown
		e.Message = pgErr.Message
	}

	return e
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key error
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// IsCheckViolation checks if error is a check constraint error
func IsCheckViolation(err error) bool {
	return errors.Is(err, ErrCheckViolation)
}

// IsNotNullViolation checks if error is a not null violation error
func IsNotNullViolation(err error) bool {
	return errors.Is(err, ErrNotNullViolation)
}

// IsConnection checks if error is a connection error
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsTimeout checks if error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotInitialized checks if error is a pool-not-initialized error
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}

// IsPoolExhausted checks if error is a pool exhaustion error
func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

// IsPoolClosed checks if error is a pool-closed error
func IsPoolClosed(err error) bool {
	return errors.Is(err, ErrPoolClosed)
}

// IsNotRegistered checks if error is a missing-registration error
func IsNotRegistered(err error) bool {
	return errors.Is(err, ErrNotRegistered)
}

// IsFieldNotFound checks if error is a missing-field mapping error
func IsFieldNotFound(err error) bool {
	return errors.Is(err, ErrFieldNotFound)
}

// IsKeyMapping checks if error is a key mapping error
func IsKeyMapping(err error) bool {
	return errors.Is(err, ErrKeyMapping)
}

// IsRetryable checks if the error is worth retrying (serialization failure,
// deadlock, or an exhausted pool that may free up)
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeadlock) || errors.Is(err, ErrPoolExhausted)
}

// GetErrorCode extracts the error code if it's a pgkit error
func GetErrorCode(err error) (ErrorCode, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	return "", false
}

// GetConstraint extracts the constraint name if available
func GetConstraint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Constraint != "" {
		return dbErr.Constraint, true
	}
	return "", false
}

// GetTable extracts the table name if available
func GetTable(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Table != "" {
		return dbErr.Table, true
	}
	return "", false
}

// GetColumn extracts the column name if available
func GetColumn(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Column != "" {
		return dbErr.Column, true
	}
	return "", false
}

// GetDetail extracts the error detail if available
func GetDetail(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Detail != "" {
		return dbErr.Detail, true
	}
	return "", false
}

// GetHint extracts the error hint if available
func GetHint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Hint != "" {
		return dbErr.Hint, true
	}
	return "", false
}
