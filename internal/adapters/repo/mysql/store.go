package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/peertube-pod/internal/core/services"
)

const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to MySQL. Timestamps are always parsed into time.Time.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

type repositories struct {
	q querier
}

func (r repositories) Accounts() services.AccountRepository     { return &AccountRepository{q: r.q} }
func (r repositories) Channels() services.ChannelRepository     { return &ChannelRepository{q: r.q} }
func (r repositories) Videos() services.VideoRepository         { return &VideoRepository{q: r.q} }
func (r repositories) Rates() services.RateRepository           { return &RateRepository{q: r.q} }
func (r repositories) Follows() services.FollowRepository       { return &FollowRepository{q: r.q} }
func (r repositories) Pods() services.PodRepository             { return &PodRepository{q: r.q} }
func (r repositories) Blacklist() services.BlacklistRepository  { return &BlacklistRepository{q: r.q} }
func (r repositories) Ownerships() services.OwnershipRepository { return &OwnershipRepository{q: r.q} }

type Store struct {
	repositories
	db *sql.DB
}

var _ services.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{repositories: repositories{q: db}, db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx services.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}

	if err := fn(ctx, repositories{q: tx}); err != nil {
		_ = tx.Rollback()
		return translateError(err)
	}

	return translateError(tx.Commit())
}

// translateError reports deadlocks and lock wait timeouts as ErrTransactionConflict so
// callers can retry the whole transaction.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errDeadlock, errLockWaitTimeout:
			return fmt.Errorf("%w: %v", services.ErrTransactionConflict, err)
		}
	}
	return err
}

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
