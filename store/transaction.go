package store

import (
	"context"

	"github.com/jacentio/lattice/driver"
)

// WithTransaction starts a store transaction and runs fn with a session-bound
// view of the store. Every operation performed through tx executes on the
// transaction's session, bypasses the cache, and is never retried. If fn
// returns nil the transaction is committed; otherwise it is aborted and fn's
// error is returned unchanged.
//
// Transactions do not nest: calling WithTransaction on a session-bound store
// returns ErrNestedTransaction. Stores whose handle does not support sessions
// return ErrTransactionsUnsupported.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	if s.session != nil {
		return ErrNestedTransaction
	}
	if s.config.DisableTransactions {
		return ErrTransactionsDisabled
	}
	sc, ok := s.handle.Conn().(driver.SessionConn)
	if !ok {
		return ErrTransactionsUnsupported
	}

	sess, err := sc.StartSession(ctx)
	if err != nil {
		s.reporter.ReportError(err, map[string]any{
			"database": s.config.Database,
			"action":   "startSession",
		})
		return ErrOperation
	}

	committed := false
	defer func() {
		if !committed {
			if aerr := sess.Abort(ctx); aerr != nil {
				s.logger.Warn("transaction abort failed", "error", aerr)
			}
		}
		if eerr := sess.End(ctx); eerr != nil {
			s.logger.Warn("session end failed", "error", eerr)
		}
	}()

	if err := fn(ctx, s.bound(sess)); err != nil {
		return err
	}

	if err := sess.Commit(ctx); err != nil {
		s.reporter.ReportError(err, map[string]any{
			"database": s.config.Database,
			"action":   "commitTransaction",
		})
		return ErrOperation
	}
	committed = true
	return nil
}
