package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS registrations (
			guild_id VARCHAR(20) NOT NULL,
			user_id VARCHAR(20) NOT NULL,
			riot_name VARCHAR(50) NOT NULL,
			riot_tag VARCHAR(10) NOT NULL,
			region VARCHAR(10) NOT NULL DEFAULT 'na',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id VARCHAR(20) PRIMARY KEY,
			announcement_channel_id VARCHAR(20),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS announcement_ledger (
			guild_id VARCHAR(20) NOT NULL,
			user_id VARCHAR(20) NOT NULL,
			last_match_id VARCHAR(50) NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_guild ON registrations(guild_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Registration operations

// UpsertRegistration creates or replaces a user's registration in a guild
func (r *Repository) UpsertRegistration(reg *Registration) error {
	_, err := r.db.Exec(
		`INSERT INTO registrations (guild_id, user_id, riot_name, riot_tag, region) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET
		   riot_name = excluded.riot_name,
		   riot_tag = excluded.riot_tag,
		   region = excluded.region`,
		reg.GuildID, reg.UserID, reg.RiotName, reg.RiotTag, reg.Region,
	)
	return err
}

// GetRegistration finds a user's registration in a guild.
// Returns (nil, nil) when the user is not registered.
func (r *Repository) GetRegistration(guildID, userID string) (*Registration, error) {
	reg := &Registration{}
	err := r.db.QueryRow(
		`SELECT guild_id, user_id, riot_name, riot_tag, region, created_at
		 FROM registrations WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	).Scan(&reg.GuildID, &reg.UserID, &reg.RiotName, &reg.RiotTag, &reg.Region, &reg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// DeleteRegistration removes a user's registration from a guild.
// Reports whether a row was removed.
func (r *Repository) DeleteRegistration(guildID, userID string) (bool, error) {
	result, err := r.db.Exec(
		`DELETE FROM registrations WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetRegistrationsByGuild returns all registrations in a guild
func (r *Repository) GetRegistrationsByGuild(guildID string) ([]*Registration, error) {
	rows, err := r.db.Query(
		`SELECT guild_id, user_id, riot_name, riot_tag, region, created_at
		 FROM registrations WHERE guild_id = ? ORDER BY created_at`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		reg := &Registration{}
		if err := rows.Scan(&reg.GuildID, &reg.UserID, &reg.RiotName, &reg.RiotTag, &reg.Region, &reg.CreatedAt); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	return regs, rows.Err()
}

// Guild settings operations

// UpsertGuildSettings creates or updates guild settings
func (r *Repository) UpsertGuildSettings(settings *GuildSettings) error {
	_, err := r.db.Exec(
		`INSERT INTO guild_settings (guild_id, announcement_channel_id) VALUES (?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET announcement_channel_id = excluded.announcement_channel_id`,
		settings.GuildID, settings.AnnouncementChannelID,
	)
	return err
}

// GetGuildSettings retrieves guild settings.
// Returns (nil, nil) when the guild has no settings yet.
func (r *Repository) GetGuildSettings(guildID string) (*GuildSettings, error) {
	settings := &GuildSettings{}
	err := r.db.QueryRow(
		`SELECT guild_id, announcement_channel_id, created_at FROM guild_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&settings.GuildID, &settings.AnnouncementChannelID, &settings.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Announcement ledger operations

// LastAnnounced returns the last announced match ID for a user in a guild,
// or the empty string if nothing was announced yet.
func (r *Repository) LastAnnounced(guildID, userID string) (string, error) {
	var matchID string
	err := r.db.QueryRow(
		`SELECT last_match_id FROM announcement_ledger WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	).Scan(&matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return matchID, nil
}

// SetLastAnnounced records the last announced match for a user in a guild
func (r *Repository) SetLastAnnounced(guildID, userID, matchID string) error {
	_, err := r.db.Exec(
		`INSERT INTO announcement_ledger (guild_id, user_id, last_match_id, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET
		   last_match_id = excluded.last_match_id,
		   updated_at = CURRENT_TIMESTAMP`,
		guildID, userID, matchID,
	)
	return err
}
