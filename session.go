package pgkit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/uptrace/bun"
)

// Session is a pooled connection with an open transaction on it. The
// transaction begins when the session is leased; work is persisted only by
// an explicit Commit. Closing the session discards whatever was not
// committed and returns the connection to the pool.
//
// A Session is not safe for concurrent use.
type Session struct {
	bun.Tx
	conn         bun.Conn
	pool         *Pool
	log          *slog.Logger
	txOpts       TxOptions
	savepointSeq *int64
	done         bool // current transaction committed or rolled back
	closed       bool
}

// TxOptions configures transaction behavior
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// DefaultTxOptions returns default transaction options
func DefaultTxOptions() TxOptions {
	return TxOptions{
		Isolation: sql.LevelDefault,
		ReadOnly:  false,
	}
}

// ReadOnlyTxOptions returns options for read-only transactions
func ReadOnlyTxOptions() TxOptions {
	return TxOptions{
		Isolation: sql.LevelDefault,
		ReadOnly:  true,
	}
}

// SerializableTxOptions returns options for serializable transactions
func SerializableTxOptions() TxOptions {
	return TxOptions{
		Isolation: sql.LevelSerializable,
		ReadOnly:  false,
	}
}

// SessionFunc is the body of a session scope
type SessionFunc func(s *Session) error

// WithSession executes fn within a session scope. The scope never commits
// on its own: call Commit inside fn to persist work, otherwise it is
// discarded when the scope ends. When fn fails, the transaction is rolled
// back and the original error is returned unchanged.
func (p *Pool) WithSession(ctx context.Context, fn SessionFunc) error {
	return p.WithSessionTx(ctx, DefaultTxOptions(), fn)
}

// WithSessionTx executes fn within a session scope with custom transaction
// options
func (p *Pool) WithSessionTx(ctx context.Context, opts TxOptions, fn SessionFunc) error {
	s, err := p.GetSessionTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = s.Rollback()
			_ = s.Close()
			panic(r)
		}
	}()

	if err := fn(s); err != nil {
		if s.log != nil {
			s.log.Error("error during leased session, rolling back",
				slog.String("error", err.Error()),
			)
		}
		if rbErr := s.Rollback(); rbErr != nil {
			_ = s.Close()
			return &Error{
				Code:    CodeTransaction,
				Message: fmt.Sprintf("rollback failed: %v", rbErr),
				Op:      "WithSession",
				Cause:   err,
			}
		}
		if cErr := s.Close(); cErr != nil && s.log != nil {
			s.log.Warn("failed to close session after rollback",
				slog.String("error", cErr.Error()),
			)
		}
		return err
	}

	return s.Close()
}

// ReadOnlySession executes fn within a read-only session scope
func (p *Pool) ReadOnlySession(ctx context.Context, fn SessionFunc) error {
	return p.WithSessionTx(ctx, ReadOnlyTxOptions(), fn)
}

// Commit commits the current transaction. The session stays open; use Begin
// to start the next transaction on the same connection.
func (s *Session) Commit() error {
	if s.closed {
		return &Error{Code: CodeSessionClosed, Message: "session is closed", Op: "Commit"}
	}
	if s.done {
		return &Error{Code: CodeTransaction, Message: "no transaction in progress", Op: "Commit"}
	}
	if err := s.Tx.Commit(); err != nil {
		return wrapError(err, "Commit")
	}
	s.done = true
	return nil
}

// Rollback aborts the current transaction. Rolling back a finished
// transaction is a no-op.
func (s *Session) Rollback() error {
	if s.closed {
		return &Error{Code: CodeSessionClosed, Message: "session is closed", Op: "Rollback"}
	}
	return s.rollback("Rollback")
}

func (s *Session) rollback(op string) error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.Tx.Rollback(); err != nil {
		// Already finished at the driver level, nothing to undo
		if err == sql.ErrTxDone {
			return nil
		}
		return wrapError(err, op)
	}
	return nil
}

// Begin starts the next transaction on the leased connection. It fails
// while a transaction is still in progress: Commit or Rollback first.
func (s *Session) Begin(ctx context.Context) error {
	if s.closed {
		return &Error{Code: CodeSessionClosed, Message: "session is closed", Op: "Begin"}
	}
	if !s.done {
		return &Error{Code: CodeTransaction, Message: "transaction already in progress", Op: "Begin"}
	}

	bunTx, err := s.conn.BeginTx(ctx, &sql.TxOptions{
		Isolation: s.txOpts.Isolation,
		ReadOnly:  s.txOpts.ReadOnly,
	})
	if err != nil {
		return wrapError(err, "Begin")
	}

	s.Tx = bunTx
	s.done = false
	return nil
}

// Close discards any uncommitted work and returns the connection to the
// pool. Committed work is untouched. Close is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	rbErr := s.rollback("Close")
	cErr := s.conn.Close()
	if rbErr != nil {
		return rbErr
	}
	if cErr != nil {
		return wrapError(cErr, "Close")
	}
	return nil
}

// active reports whether the session can run statements right now
func (s *Session) active(op string) error {
	if s.closed {
		return &Error{Code: CodeSessionClosed, Message: "session is closed", Op: op}
	}
	if s.done {
		return &Error{Code: CodeTransaction, Message: "no transaction in progress", Op: op}
	}
	return nil
}

// WithSavepoint executes fn guarded by a savepoint. When fn fails, the
// session rolls back to the savepoint and the surrounding transaction stays
// usable; when it succeeds, the savepoint is released.
func (s *Session) WithSavepoint(ctx context.Context, fn SessionFunc) error {
	name, err := s.Savepoint(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_, _ = s.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
			panic(r)
		}
	}()

	if err := fn(s); err != nil {
		if _, rbErr := s.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return &Error{
				Code:    CodeTransaction,
				Message: fmt.Sprintf("savepoint rollback failed: %v", rbErr),
				Op:      "WithSavepoint",
				Cause:   err,
			}
		}
		return err
	}

	if _, err := s.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return wrapError(err, "WithSavepoint.Release")
	}
	return nil
}

// Savepoint creates a savepoint with a generated name and returns the name
func (s *Session) Savepoint(ctx context.Context) (string, error) {
	if err := s.active("Savepoint"); err != nil {
		return "", err
	}

	name := fmt.Sprintf("sp_%d", atomic.AddInt64(s.savepointSeq, 1))
	if _, err := s.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return "", wrapError(err, "Savepoint")
	}
	return name, nil
}

// RollbackToSavepoint rolls back to a savepoint without ending the
// transaction
func (s *Session) RollbackToSavepoint(ctx context.Context, name string) error {
	if err := s.active("RollbackToSavepoint"); err != nil {
		return err
	}
	_, err := s.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return wrapError(err, "RollbackToSavepoint")
}

// ReleaseSavepoint releases a savepoint
func (s *Session) ReleaseSavepoint(ctx context.Context, name string) error {
	if err := s.active("ReleaseSavepoint"); err != nil {
		return err
	}
	_, err := s.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return wrapError(err, "ReleaseSavepoint")
}

// Pool returns the pool this session was leased from
func (s *Session) Pool() *Pool {
	return s.pool
}
