package records

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		game_id     TEXT PRIMARY KEY,
		player_a    TEXT NOT NULL,
		player_b    TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		winner      TEXT NOT NULL DEFAULT '',
		end_reason  TEXT NOT NULL DEFAULT '',
		speed       TEXT NOT NULL DEFAULT '',
		move_seq    BIGINT NOT NULL DEFAULT 0,
		final_board TEXT NOT NULL DEFAULT '',
		created_at  BIGINT NOT NULL,
		started_at  BIGINT NOT NULL DEFAULT 0,
		finished_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS games_player_a_finished ON games (player_a, finished_at)`,
	`CREATE INDEX IF NOT EXISTS games_player_b_finished ON games (player_b, finished_at)`,
}

const (
	qInsert = `INSERT INTO games (game_id, player_a, player_b, status, speed, created_at, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (game_id) DO NOTHING`

	qStarted = `UPDATE games SET player_b=$2, status=$3, started_at=$4
		WHERE game_id=$1 AND finished_at=0`

	qFinish = `INSERT INTO games (
		game_id, player_a, player_b, status, winner, end_reason, speed,
		move_seq, final_board, created_at, started_at, finished_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (game_id) DO UPDATE SET
		player_b=EXCLUDED.player_b,
		status=EXCLUDED.status,
		winner=EXCLUDED.winner,
		end_reason=EXCLUDED.end_reason,
		move_seq=EXCLUDED.move_seq,
		final_board=EXCLUDED.final_board,
		started_at=EXCLUDED.started_at,
		finished_at=EXCLUDED.finished_at`

	qRecent = `SELECT game_id, player_a, player_b, status, winner, end_reason, speed,
		move_seq, final_board, created_at, started_at, finished_at
	FROM games
	WHERE (player_a=$1 OR player_b=$1) AND finished_at > 0
	ORDER BY finished_at DESC, game_id DESC
	LIMIT $2`
)

// SQL implements Repository over database/sql for both Postgres and SQLite.
type SQL struct {
	db     *sql.DB
	rebind func(string) string
}

// OpenPostgres connects with lib/pq and creates the games table if needed.
func OpenPostgres(ctx context.Context, databaseURL string) (*SQL, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	return initSQL(ctx, db, func(q string) string { return q })
}

// OpenSQLite opens path (or ":memory:") with modernc.org/sqlite.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)
	return initSQL(ctx, db, sqliteRebind)
}

func initSQL(ctx context.Context, db *sql.DB, rebind func(string) string) (*SQL, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQL{db: db, rebind: rebind}, nil
}

var pgParam = regexp.MustCompile(`\$(\d+)`)

func sqliteRebind(q string) string { return pgParam.ReplaceAllString(q, "?$1") }

func (r *SQL) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQL) InsertGame(ctx context.Context, rec *session.Record) error {
	row := toRow(rec)
	_, err := r.db.ExecContext(ctx, r.rebind(qInsert),
		row.ID, row.PlayerA, row.PlayerB, row.Status, row.Speed, row.CreatedAt, row.StartedAt)
	return err
}

func (r *SQL) MarkStarted(ctx context.Context, rec *session.Record) error {
	_, err := r.db.ExecContext(ctx, r.rebind(qStarted),
		rec.GameID, rec.PlayerB, string(rec.Status), rec.StartedAt)
	return err
}

// FinishGame upserts the terminal snapshot so that a missed InsertGame does
// not lose the result.
func (r *SQL) FinishGame(ctx context.Context, rec *session.Record) error {
	if !rec.Status.Terminal() {
		return fmt.Errorf("finish game %s: status %s is not terminal", rec.GameID, rec.Status)
	}
	row := toRow(rec)
	_, err := r.db.ExecContext(ctx, r.rebind(qFinish),
		row.ID, row.PlayerA, row.PlayerB, row.Status, row.Winner, row.EndReason, row.Speed,
		row.MoveSeq, string(row.FinalBoard), row.CreatedAt, row.StartedAt, row.FinishedAt)
	return err
}

func (r *SQL) RecentByPlayer(ctx context.Context, playerID string, limit int) ([]gamedto.FinishedGame, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(qRecent), strings.TrimSpace(playerID), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []gamedto.FinishedGame{}
	for rows.Next() {
		var (
			g     gamedto.FinishedGame
			board string
		)
		if err := rows.Scan(&g.ID, &g.PlayerA, &g.PlayerB, &g.Status, &g.Winner, &g.EndReason, &g.Speed,
			&g.MoveSeq, &board, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		if board != "" {
			g.FinalBoard = []byte(board)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
