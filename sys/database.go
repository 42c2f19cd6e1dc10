package sys

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mattn/go-sqlite3"
)

// --- Phase 2: Database Connection & Lifecycle ---

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	// Explicitly reference sqlite3 driver to avoid blank identifier
	// The driver registers itself via its init() function
	_ = sqlite3.SQLiteDriver{}

	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS autoplaylist (
			url TEXT PRIMARY KEY,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS blacklist (
			user_id TEXT PRIMARY KEY,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id TEXT PRIMARY KEY,
			volume REAL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// --- Phase 3: Infrastructure & Bot Persistence ---

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Phase 4: Autoplaylist ---

// AutoPlaylistDB is the sqlite-backed fallback list the player draws from when
// a session runs out of requested songs.
type AutoPlaylistDB struct {
	db *sql.DB
}

func NewAutoPlaylistDB(db *sql.DB) *AutoPlaylistDB {
	return &AutoPlaylistDB{db: db}
}

func (a *AutoPlaylistDB) List(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT url FROM autoplaylist ORDER BY added_at ASC, url ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (a *AutoPlaylistDB) Add(ctx context.Context, url string) error {
	_, err := a.db.ExecContext(ctx, "INSERT OR IGNORE INTO autoplaylist (url) VALUES (?)", url)
	return err
}

func (a *AutoPlaylistDB) Remove(ctx context.Context, url string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM autoplaylist WHERE url = ?", url)
	return err
}

// SeedFromFile imports one URL per line (blank lines and # comments skipped)
// the first time the bot runs against an empty table. It returns the number
// of imported URLs.
func (a *AutoPlaylistDB) SeedFromFile(ctx context.Context, path string) (int, error) {
	seeded, err := GetBotConfig(ctx, "autoplaylist_seeded")
	if err != nil {
		return 0, err
	}
	if seeded == path {
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO autoplaylist (url) VALUES (?)", line)
		if err != nil {
			return 0, err
		}
		if c, _ := res.RowsAffected(); c > 0 {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	LogDatabase(MsgAutoPlaylistSeeded, n, path)
	return n, SetBotConfig(ctx, "autoplaylist_seeded", path)
}

// --- Phase 5: Blacklist & Guild Settings ---

func AddToBlacklist(ctx context.Context, userIDs ...snowflake.ID) (int, error) {
	added := 0
	for _, id := range userIDs {
		res, err := DB.ExecContext(ctx, "INSERT OR IGNORE INTO blacklist (user_id) VALUES (?)", id.String())
		if err != nil {
			return added, err
		}
		if c, _ := res.RowsAffected(); c > 0 {
			added++
		}
	}
	return added, nil
}

func RemoveFromBlacklist(ctx context.Context, userIDs ...snowflake.ID) (int, error) {
	removed := 0
	for _, id := range userIDs {
		res, err := DB.ExecContext(ctx, "DELETE FROM blacklist WHERE user_id = ?", id.String())
		if err != nil {
			return removed, err
		}
		if c, _ := res.RowsAffected(); c > 0 {
			removed++
		}
	}
	return removed, nil
}

func IsBlacklisted(ctx context.Context, userID snowflake.ID) (bool, error) {
	var one int
	err := DB.QueryRowContext(ctx, "SELECT 1 FROM blacklist WHERE user_id = ?", userID.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// GetGuildVolume returns the stored volume for a guild and whether one exists.
func GetGuildVolume(ctx context.Context, guildID snowflake.ID) (float64, bool, error) {
	var raw sql.NullFloat64
	err := DB.QueryRowContext(ctx, "SELECT volume FROM guild_settings WHERE guild_id = ?", guildID.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return raw.Float64, raw.Valid, nil
}

func SetGuildVolume(ctx context.Context, guildID snowflake.ID, volume float64) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, volume) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET volume = excluded.volume, updated_at = CURRENT_TIMESTAMP
	`, guildID.String(), volume)
	return err
}
