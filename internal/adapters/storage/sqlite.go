package storage

// sqlite.go — alertas y apuestas liquidadas.
//
// Estrategia:
//   - `alerts`: una fila por alerta. Índice único PARCIAL sobre la clave natural
//     (event, market, selection, bookmaker) WHERE status = 'ACTIVE': como mucho una
//     ACTIVE por clave, pero las terminales quedan como histórico.
//   - UpsertActive es un único INSERT … ON CONFLICT … DO UPDATE … RETURNING id, así que
//     dos escaneos concurrentes del mismo snapshot nunca duplican la alerta.
//   - `settled_bets`: apuestas liquidadas para las estadísticas.
//   - Prune automático al arrancar: alertas terminales con más de 30 días.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
    id                    TEXT PRIMARY KEY,
    event_id              TEXT     NOT NULL,
    market_id             TEXT     NOT NULL,
    selection             TEXT     NOT NULL,
    bookmaker             TEXT     NOT NULL,
    user_id               TEXT     NOT NULL DEFAULT '',
    sport_key             TEXT     NOT NULL DEFAULT '',
    odds                  REAL     NOT NULL DEFAULT 0,
    predicted_probability REAL     NOT NULL DEFAULT 0,
    confidence            REAL     NOT NULL DEFAULT 0,
    value_percentage      REAL     NOT NULL DEFAULT 0,
    expected_value        REAL     NOT NULL DEFAULT 0,
    status                TEXT     NOT NULL DEFAULT 'ACTIVE',
    expires_at            DATETIME NOT NULL,
    created_at            DATETIME NOT NULL,
    updated_at            DATETIME NOT NULL,
    external_bet_id       TEXT     NOT NULL DEFAULT '',
    invalid_reason        TEXT     NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_key
    ON alerts(event_id, market_id, selection, bookmaker) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS idx_alerts_status_exp ON alerts(status, expires_at);

CREATE TABLE IF NOT EXISTS settled_bets (
    id          TEXT PRIMARY KEY,
    user_id     TEXT     NOT NULL,
    sport       TEXT     NOT NULL DEFAULT '',
    platform    TEXT     NOT NULL DEFAULT '',
    market_type TEXT     NOT NULL DEFAULT '',
    stake       REAL     NOT NULL DEFAULT 0,
    actual_win  REAL     NOT NULL DEFAULT 0,
    status      TEXT     NOT NULL,
    placed_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bets_user_placed ON settled_bets(user_id, placed_at);
`

const retentionAlerts = 30 * 24 * time.Hour // alertas terminales: 30 días

const alertColumns = `id, event_id, market_id, selection, bookmaker, user_id, sport_key,
	odds, predicted_probability, confidence, value_percentage, expected_value,
	status, expires_at, created_at, updated_at, external_bet_id, invalid_reason`

// SQLiteStorage implementa ports.AlertStore y ports.BetHistory usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia alertas terminales antiguas.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, now: time.Now}
	s.pruneOld(context.Background())
	return s, nil
}

// SetClock reemplaza el reloj usado para created_at/updated_at (tests).
func (s *SQLiteStorage) SetClock(now func() time.Time) {
	s.now = now
}

// UpsertActive implementa ports.AlertSink.
func (s *SQLiteStorage) UpsertActive(ctx context.Context, opp domain.ValueOpportunity) (string, error) {
	now := s.now().UTC()
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO alerts
			(id, event_id, market_id, selection, bookmaker, sport_key,
			 odds, predicted_probability, confidence, value_percentage, expected_value,
			 status, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'ACTIVE', ?, ?, ?)
		ON CONFLICT(event_id, market_id, selection, bookmaker) WHERE status = 'ACTIVE' DO UPDATE SET
			sport_key             = excluded.sport_key,
			odds                  = excluded.odds,
			predicted_probability = excluded.predicted_probability,
			confidence            = excluded.confidence,
			value_percentage      = excluded.value_percentage,
			expected_value        = excluded.expected_value,
			expires_at            = excluded.expires_at,
			updated_at            = excluded.updated_at
		RETURNING id`,
		uuid.NewString(),
		opp.EventID, opp.MarketID, opp.Selection, opp.Bookmaker, opp.SportKey,
		opp.Odds, opp.PredictedProbability, opp.Confidence, opp.ValuePercentage, opp.ExpectedValue,
		opp.ExpiresAt.UTC(), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("storage.UpsertActive: %s: %w", opp.Key(), classifyError(err))
	}
	return id, nil
}

// GetAlert devuelve la alerta por ID o domain.ErrNotFound.
func (s *SQLiteStorage) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("storage.GetAlert: %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("storage.GetAlert: %w", err)
	}
	return a, nil
}

// ListAlerts devuelve las alertas con el estado dado (vacío = todas), por value desc.
func (s *SQLiteStorage) ListAlerts(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY value_percentage DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListAlerts: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListAlerts: scan row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkTaken pasa la alerta a TAKEN registrando el ID de la apuesta externa.
func (s *SQLiteStorage) MarkTaken(ctx context.Context, id, externalBetID string) (domain.Alert, error) {
	return s.transition(ctx, id, domain.AlertTaken, func(a *domain.Alert) {
		a.ExternalBetID = externalBetID
	})
}

// Invalidate pasa la alerta a INVALID con el motivo dado.
func (s *SQLiteStorage) Invalidate(ctx context.Context, id, reason string) (domain.Alert, error) {
	return s.transition(ctx, id, domain.AlertInvalid, func(a *domain.Alert) {
		a.InvalidReason = reason
	})
}

// transition aplica la máquina de estados de domain.Alert dentro de una transacción.
// El UPDATE exige status = 'ACTIVE': si otro writer ganó la carrera devuelve ErrPersistenceConflict.
func (s *SQLiteStorage) transition(ctx context.Context, id string, to domain.AlertStatus, mutate func(*domain.Alert)) (domain.Alert, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("storage.transition: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAlert(tx.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("storage.transition: %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("storage.transition: load %q: %w", id, err)
	}

	next, err := a.Transition(to, s.now().UTC())
	if err != nil {
		return a, fmt.Errorf("storage.transition: %q: %w", id, err)
	}
	mutate(&next)

	res, err := tx.ExecContext(ctx, `
		UPDATE alerts
		SET status = ?, updated_at = ?, external_bet_id = ?, invalid_reason = ?
		WHERE id = ? AND status = 'ACTIVE'`,
		string(next.Status), next.UpdatedAt, next.ExternalBetID, next.InvalidReason, id,
	)
	if err != nil {
		return a, fmt.Errorf("storage.transition: update %q: %w", id, classifyError(err))
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return a, fmt.Errorf("storage.transition: %q changed concurrently: %w", id, domain.ErrPersistenceConflict)
	}
	if err := tx.Commit(); err != nil {
		return a, fmt.Errorf("storage.transition: commit: %w", classifyError(err))
	}
	return next, nil
}

// ExpireDue pasa a EXPIRED las alertas ACTIVE con expires_at <= now.
func (s *SQLiteStorage) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET status = 'EXPIRED', updated_at = ?
		WHERE status = 'ACTIVE' AND expires_at <= ?`,
		s.now().UTC(), now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("storage.ExpireDue: %w", classifyError(err))
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SaveSettledBets inserta o reemplaza apuestas liquidadas en una transacción.
func (s *SQLiteStorage) SaveSettledBets(ctx context.Context, bets []domain.SettledBet) error {
	if len(bets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSettledBets: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO settled_bets
			(id, user_id, sport, platform, market_type, stake, actual_win, status, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sport       = excluded.sport,
			platform    = excluded.platform,
			market_type = excluded.market_type,
			stake       = excluded.stake,
			actual_win  = excluded.actual_win,
			status      = excluded.status,
			placed_at   = excluded.placed_at
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveSettledBets: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bets {
		id := b.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			id, b.UserID, b.Sport, b.Platform, b.MarketType,
			b.Stake, b.ActualWin, string(b.Status), b.PlacedAt.UTC(),
		); err != nil {
			return fmt.Errorf("storage.SaveSettledBets: upsert %s: %w", id, classifyError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSettledBets: commit: %w", err)
	}
	return nil
}

// ListSettled implementa ports.BetHistory. userID vacío = todos los usuarios.
func (s *SQLiteStorage) ListSettled(ctx context.Context, userID string, w domain.Window) ([]domain.SettledBet, error) {
	var (
		conds = []string{"placed_at >= ?"}
		args  = []any{w.Start.UTC()}
	)
	if !w.End.IsZero() {
		conds = append(conds, "placed_at < ?")
		args = append(args, w.End.UTC())
	}
	if userID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, sport, platform, market_type, stake, actual_win, status, placed_at
		FROM settled_bets
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY placed_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListSettled: query: %w", err)
	}
	defer rows.Close()

	var bets []domain.SettledBet
	for rows.Next() {
		var (
			b              domain.SettledBet
			status, placed string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Sport, &b.Platform, &b.MarketType,
			&b.Stake, &b.ActualWin, &status, &placed); err != nil {
			return nil, fmt.Errorf("storage.ListSettled: scan row: %w", err)
		}
		b.Status = domain.BetStatus(status)
		if b.PlacedAt, err = parseTime(placed); err != nil {
			return nil, fmt.Errorf("storage.ListSettled: %s: %w", b.ID, err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(r rowScanner) (domain.Alert, error) {
	var (
		a                         domain.Alert
		status                    string
		expires, created, updated string
	)
	if err := r.Scan(
		&a.ID, &a.EventID, &a.MarketID, &a.Selection, &a.Bookmaker, &a.UserID, &a.SportKey,
		&a.Odds, &a.PredictedProbability, &a.Confidence, &a.ValuePercentage, &a.ExpectedValue,
		&status, &expires, &created, &updated, &a.ExternalBetID, &a.InvalidReason,
	); err != nil {
		return domain.Alert{}, err
	}
	a.Status = domain.AlertStatus(status)

	var err error
	if a.ExpiresAt, err = parseTime(expires); err != nil {
		return domain.Alert{}, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return domain.Alert{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Alert{}, err
	}
	return a, nil
}

// timeLayouts son los formatos con los que el driver puede devolver un DATETIME.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: %w", s, domain.ErrInvalidInput)
}

// classifyError mapea BUSY/LOCKED y violaciones de unicidad a domain.ErrPersistenceConflict.
func classifyError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED,
		sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", domain.ErrPersistenceConflict, err)
	}
	return err
}

// pruneOld elimina alertas terminales antiguas para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := s.now().UTC().Add(-retentionAlerts)
	s.db.ExecContext(ctx, `DELETE FROM alerts WHERE status <> 'ACTIVE' AND updated_at < ?`, cutoff)
}
