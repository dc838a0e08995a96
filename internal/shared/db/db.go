package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	pingTimeout     = 15 * time.Second
	poolTimeout     = 30 * time.Second
	connMaxLifetime = time.Hour
)

// PostgresConfig reúne os parâmetros de conexão e do pool
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // já normalizado para o lib/pq (disable, require, verify-ca, verify-full)
	MinConns int
	MaxConns int
}

// DSN monta a URL de conexão aceita pelo lib/pq
func (c PostgresConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("connect_timeout", "10")
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ConnectPostgres valida a conectividade com uma conexão isolada e só então cria o pool.
// Qualquer falha aqui é fatal para a inicialização do serviço.
func ConnectPostgres(ctx context.Context, cfg PostgresConfig, log *zap.Logger) (*sql.DB, error) {
	log.Info("testing database connection",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("database", cfg.Database),
		zap.String("sslmode", cfg.SSLMode))

	if err := pingOnce(ctx, cfg.DSN()); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, poolTimeout)
	defer cancel()

	var version string
	if err := db.QueryRowContext(pctx, `SELECT version()`).Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create pool (timeout %s): %w", poolTimeout, err)
	}

	log.Info("database pool ready",
		zap.String("version", version),
		zap.Int("min_conns", cfg.MinConns),
		zap.Int("max_conns", cfg.MaxConns))
	return db, nil
}

// pingOnce executa uma ida-e-volta trivial numa conexão descartável
func pingOnce(ctx context.Context, dsn string) error {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	var one int
	if err := conn.QueryRowContext(pctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping postgres (timeout %s): %w", pingTimeout, err)
	}
	return nil
}

// WithTx executa fn numa transação; qualquer erro faz rollback completo
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
