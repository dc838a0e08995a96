package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radieske/pvp-results-ingest/internal/shared/db"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

//go:embed schema.sql
var schemaSQL string

// ErrUserNotResolved indica que o id interno não foi encontrado logo após o upsert
var ErrUserNotResolved = errors.New("user id not resolved after upsert")

const dateLayout = "2006-01-02"

const (
	upsertUserSQL = `
		INSERT INTO users
		  (username, external_id, profile_url, level, avatar_url, avatar_hash, website, created_at, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
		ON CONFLICT (external_id, website) DO UPDATE SET
		  username    = EXCLUDED.username,
		  profile_url = EXCLUDED.profile_url,
		  level       = EXCLUDED.level,
		  avatar_url  = EXCLUDED.avatar_url,
		  updated_at  = NOW()
	`

	selectUserIDSQL = `SELECT id FROM users WHERE external_id = $1 AND website = $2`

	upsertDailyWagerSQL = `
		INSERT INTO user_daily_wager
		  (user_id, date, total_wager, created_at, updated_at)
		VALUES
		  ($1,$2,$3,NOW(),NOW())
		ON CONFLICT (user_id, date) DO UPDATE SET
		  total_wager = user_daily_wager.total_wager + EXCLUDED.total_wager,
		  updated_at  = NOW()
	`
)

// WriteResult descreve o que foi gravado para um jogador
type WriteResult struct {
	UserID    int64
	WagerDate time.Time
}

// PostgresRepo grava usuários e o acumulado diário de apostas em Postgres
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// EnsureSchema cria as tabelas se ainda não existirem
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schemaSQL)
	return err
}

// WritePlayer grava um jogador numa única transação:
// upsert do usuário, resolução do id interno e soma da aposta no dia.
// Qualquer falha desfaz tudo; nada parcial é commitado.
func (r *PostgresRepo) WritePlayer(ctx context.Context, p events.PlayerResult, now time.Time) (WriteResult, error) {
	var res WriteResult

	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		// Perfil sempre sobrescrito com o último valor observado; id interno preservado
		if _, err := tx.ExecContext(ctx, upsertUserSQL,
			p.DisplayName, p.ExternalID, p.ProfileURL, p.Level,
			p.AvatarURL, p.AvatarHash, p.SiteIdentifier,
		); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		if err := tx.QueryRowContext(ctx, selectUserIDSQL, p.ExternalID, p.SiteIdentifier).Scan(&res.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: external_id=%s website=%s", ErrUserNotResolved, p.ExternalID, p.SiteIdentifier)
			}
			return fmt.Errorf("resolve user id: %w", err)
		}

		res.WagerDate = ParseWagerDate(p.EventTimestamp, now)

		// Acumulado é aditivo: nunca substitui o total existente
		if _, err := tx.ExecContext(ctx, upsertDailyWagerSQL,
			res.UserID, res.WagerDate.Format(dateLayout), p.TotalBet,
		); err != nil {
			return fmt.Errorf("upsert daily wager: %w", err)
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, err
	}
	return res, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z0700",
	dateLayout,
}

// ParseWagerDate extrai o dia do timestamp do jogo (no fuso do próprio timestamp).
// Ausente ou inválido, usa a data de processamento.
func ParseWagerDate(ts string, now time.Time) time.Time {
	ts = strings.TrimSpace(ts)
	if ts != "" {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, ts); err == nil {
				return midnight(t)
			}
		}
	}
	return midnight(now)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
