// Package postgres implementa ports.AlertStore y ports.BetHistory sobre PostgreSQL (lib/pq)
// para despliegues con varios procesos escribiendo alertas a la vez.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
    id                    UUID PRIMARY KEY,
    event_id              TEXT             NOT NULL,
    market_id             TEXT             NOT NULL,
    selection             TEXT             NOT NULL,
    bookmaker             TEXT             NOT NULL,
    user_id               TEXT             NOT NULL DEFAULT '',
    sport_key             TEXT             NOT NULL DEFAULT '',
    odds                  DOUBLE PRECISION NOT NULL DEFAULT 0,
    predicted_probability DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence            DOUBLE PRECISION NOT NULL DEFAULT 0,
    value_percentage      DOUBLE PRECISION NOT NULL DEFAULT 0,
    expected_value        DOUBLE PRECISION NOT NULL DEFAULT 0,
    status                TEXT             NOT NULL DEFAULT 'ACTIVE',
    expires_at            TIMESTAMPTZ      NOT NULL,
    created_at            TIMESTAMPTZ      NOT NULL,
    updated_at            TIMESTAMPTZ      NOT NULL,
    external_bet_id       TEXT             NOT NULL DEFAULT '',
    invalid_reason        TEXT             NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_key
    ON alerts (event_id, market_id, selection, bookmaker) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS idx_alerts_status_exp ON alerts (status, expires_at);

CREATE TABLE IF NOT EXISTS settled_bets (
    id          TEXT PRIMARY KEY,
    user_id     TEXT             NOT NULL,
    sport       TEXT             NOT NULL DEFAULT '',
    platform    TEXT             NOT NULL DEFAULT '',
    market_type TEXT             NOT NULL DEFAULT '',
    stake       DOUBLE PRECISION NOT NULL DEFAULT 0,
    actual_win  DOUBLE PRECISION NOT NULL DEFAULT 0,
    status      TEXT             NOT NULL,
    placed_at   TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bets_user_placed ON settled_bets (user_id, placed_at);
`

const alertColumns = `id, event_id, market_id, selection, bookmaker, user_id, sport_key,
	odds, predicted_probability, confidence, value_percentage, expected_value,
	status, expires_at, created_at, updated_at, external_bet_id, invalid_reason`

// Códigos SQLSTATE que se tratan como conflicto de concurrencia.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// Store es el adaptador PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open conecta con el DSN dado, verifica la conexión y aplica el schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres.Open: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres.Open: apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SetClock reemplaza el reloj (tests).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Close cierra el pool.
func (s *Store) Close() error { return s.db.Close() }

// UpsertActive implementa ports.AlertSink con un único INSERT … ON CONFLICT sobre el
// índice parcial, así dos escáneres concurrentes nunca crean dos alertas ACTIVE.
func (s *Store) UpsertActive(ctx context.Context, opp domain.ValueOpportunity) (string, error) {
	now := s.now().UTC()
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO alerts
			(id, event_id, market_id, selection, bookmaker, sport_key,
			 odds, predicted_probability, confidence, value_percentage, expected_value,
			 status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'ACTIVE', $12, $13, $13)
		ON CONFLICT (event_id, market_id, selection, bookmaker) WHERE status = 'ACTIVE' DO UPDATE SET
			sport_key             = EXCLUDED.sport_key,
			odds                  = EXCLUDED.odds,
			predicted_probability = EXCLUDED.predicted_probability,
			confidence            = EXCLUDED.confidence,
			value_percentage      = EXCLUDED.value_percentage,
			expected_value        = EXCLUDED.expected_value,
			expires_at            = EXCLUDED.expires_at,
			updated_at            = EXCLUDED.updated_at
		RETURNING id`,
		uuid.New(),
		opp.EventID, opp.MarketID, opp.Selection, opp.Bookmaker, opp.SportKey,
		opp.Odds, opp.PredictedProbability, opp.Confidence, opp.ValuePercentage, opp.ExpectedValue,
		opp.ExpiresAt.UTC(), now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("postgres.UpsertActive: %s: %w", opp.Key(), classifyError(err))
	}
	return id, nil
}

// GetAlert devuelve la alerta o domain.ErrNotFound. IDs que no son UUID también son NotFound.
func (s *Store) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Alert{}, fmt.Errorf("postgres.GetAlert: %q: %w", id, domain.ErrNotFound)
	}
	a, err := scanAlert(s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("postgres.GetAlert: %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("postgres.GetAlert: %w", err)
	}
	return a, nil
}

// ListAlerts devuelve las alertas con alguno de los estados dados (vacío = todas).
func (s *Store) ListAlerts(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error) {
	statuses := []string{} // nil se enviaría como NULL
	if status != "" {
		statuses = []string{string(status)}
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
		ORDER BY value_percentage DESC, id ASC`, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("postgres.ListAlerts: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres.ListAlerts: scan row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkTaken pasa la alerta a TAKEN.
func (s *Store) MarkTaken(ctx context.Context, id, externalBetID string) (domain.Alert, error) {
	return s.transition(ctx, id, domain.AlertTaken, func(a *domain.Alert) {
		a.ExternalBetID = externalBetID
	})
}

// Invalidate pasa la alerta a INVALID.
func (s *Store) Invalidate(ctx context.Context, id, reason string) (domain.Alert, error) {
	return s.transition(ctx, id, domain.AlertInvalid, func(a *domain.Alert) {
		a.InvalidReason = reason
	})
}

// transition bloquea la fila (FOR UPDATE) y aplica la máquina de estados de domain.Alert.
func (s *Store) transition(ctx context.Context, id string, to domain.AlertStatus, mutate func(*domain.Alert)) (domain.Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Alert{}, fmt.Errorf("postgres.transition: %q: %w", id, domain.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("postgres.transition: begin tx: %w", classifyError(err))
	}
	defer tx.Rollback()

	a, err := scanAlert(tx.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("postgres.transition: %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("postgres.transition: load %q: %w", id, classifyError(err))
	}

	next, err := a.Transition(to, s.now().UTC())
	if err != nil {
		return a, fmt.Errorf("postgres.transition: %q: %w", id, err)
	}
	mutate(&next)

	if _, err := tx.ExecContext(ctx, `
		UPDATE alerts SET status = $1, updated_at = $2, external_bet_id = $3, invalid_reason = $4
		WHERE id = $5`,
		string(next.Status), next.UpdatedAt, next.ExternalBetID, next.InvalidReason, id,
	); err != nil {
		return a, fmt.Errorf("postgres.transition: update %q: %w", id, classifyError(err))
	}
	if err := tx.Commit(); err != nil {
		return a, fmt.Errorf("postgres.transition: commit: %w", classifyError(err))
	}
	return next, nil
}

// ExpireDue pasa a EXPIRED las alertas ACTIVE vencidas.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET status = 'EXPIRED', updated_at = $1
		WHERE status = 'ACTIVE' AND expires_at <= $2`,
		s.now().UTC(), now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres.ExpireDue: %w", classifyError(err))
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SaveSettledBets inserta o actualiza apuestas liquidadas en una transacción.
func (s *Store) SaveSettledBets(ctx context.Context, bets []domain.SettledBet) error {
	if len(bets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres.SaveSettledBets: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO settled_bets
			(id, user_id, sport, platform, market_type, stake, actual_win, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			sport       = EXCLUDED.sport,
			platform    = EXCLUDED.platform,
			market_type = EXCLUDED.market_type,
			stake       = EXCLUDED.stake,
			actual_win  = EXCLUDED.actual_win,
			status      = EXCLUDED.status,
			placed_at   = EXCLUDED.placed_at`)
	if err != nil {
		return fmt.Errorf("postgres.SaveSettledBets: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bets {
		id := b.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, b.UserID, b.Sport, b.Platform, b.MarketType,
			b.Stake, b.ActualWin, string(b.Status), b.PlacedAt.UTC()); err != nil {
			return fmt.Errorf("postgres.SaveSettledBets: upsert %s: %w", id, classifyError(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres.SaveSettledBets: commit: %w", classifyError(err))
	}
	return nil
}

// ListSettled implementa ports.BetHistory. userID vacío = todos.
func (s *Store) ListSettled(ctx context.Context, userID string, w domain.Window) ([]domain.SettledBet, error) {
	var end any
	if !w.End.IsZero() {
		end = w.End.UTC()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, sport, platform, market_type, stake, actual_win, status, placed_at
		FROM settled_bets
		WHERE placed_at >= $1
		  AND ($2::timestamptz IS NULL OR placed_at < $2)
		  AND ($3 = '' OR user_id = $3)
		ORDER BY placed_at ASC, id ASC`, w.Start.UTC(), end, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListSettled: query: %w", err)
	}
	defer rows.Close()

	var bets []domain.SettledBet
	for rows.Next() {
		var (
			b      domain.SettledBet
			status string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Sport, &b.Platform, &b.MarketType,
			&b.Stake, &b.ActualWin, &status, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("postgres.ListSettled: scan row: %w", err)
		}
		b.Status = domain.BetStatus(status)
		b.PlacedAt = b.PlacedAt.UTC()
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(r rowScanner) (domain.Alert, error) {
	var (
		a      domain.Alert
		status string
	)
	if err := r.Scan(
		&a.ID, &a.EventID, &a.MarketID, &a.Selection, &a.Bookmaker, &a.UserID, &a.SportKey,
		&a.Odds, &a.PredictedProbability, &a.Confidence, &a.ValuePercentage, &a.ExpectedValue,
		&status, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt, &a.ExternalBetID, &a.InvalidReason,
	); err != nil {
		return domain.Alert{}, err
	}
	a.Status = domain.AlertStatus(status)
	a.ExpiresAt = a.ExpiresAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

// classifyError mapea violaciones de unicidad, fallos de serialización y deadlocks
// a domain.ErrPersistenceConflict.
func classifyError(err error) error {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %w", domain.ErrPersistenceConflict, err)
	}
	return err
}
