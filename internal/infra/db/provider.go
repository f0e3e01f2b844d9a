package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConfiguration means the DSN is missing or malformed. Fatal at
	// startup, never retried.
	ErrConfiguration = errors.New("db: missing or invalid configuration")

	// ErrUnavailable means the store could not be reached even after the
	// pool was rebuilt once.
	ErrUnavailable = errors.New("db: store unavailable")
)

const (
	minConns       = 1
	maxConns       = 10
	connectTimeout = 5 * time.Second
)

// Provider hands out live sessions from a bounded pgx pool. A session that
// fails its liveness check causes the whole pool to be discarded and rebuilt
// exactly once per Acquire; a second failure surfaces ErrUnavailable.
type Provider struct {
	mu   sync.Mutex
	cfg  *pgxpool.Config
	pool *pgxpool.Pool
}

// Open parses the DSN, builds the pool and verifies connectivity with a ping.
func Open(ctx context.Context, dsn string) (*Provider, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrConfiguration
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	cfg.MinConns = minConns
	cfg.MaxConns = maxConns
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg, pool: pool}, nil
}

func newPool(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg.Copy())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return pool, nil
}

// Acquire returns a live session. The caller must Release it on every exit
// path. Blocks while the pool is saturated, bounded by ctx.
func (p *Provider) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	pool := p.current()

	conn, err := pool.Acquire(ctx)
	if err == nil {
		if pingErr := conn.Ping(ctx); pingErr == nil {
			return conn, nil
		}
		conn.Release()
	}

	// The caller's deadline running out while waiting on a saturated pool
	// says nothing about pool health; hand that back as-is.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	// Dead or unreachable pool: rebuild once and retry the acquisition.
	if err := p.rebuild(ctx, pool); err != nil {
		return nil, err
	}
	conn, err = p.current().Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conn, nil
}

func (p *Provider) current() *pgxpool.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool
}

// rebuild swaps in a freshly connected pool. If another goroutine already
// replaced the one the caller saw, the swap is skipped.
func (p *Provider) rebuild(ctx context.Context, seen *pgxpool.Pool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != seen {
		return nil
	}
	pool, err := newPool(ctx, p.cfg)
	if err != nil {
		return err
	}
	p.pool.Close()
	p.pool = pool
	return nil
}

func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool.Close()
}
