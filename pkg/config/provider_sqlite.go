package config

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS configs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS config_sections (
	config_id INTEGER NOT NULL REFERENCES configs(id) ON DELETE CASCADE,
	section TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (config_id, section)
);

CREATE TABLE IF NOT EXISTS devices (
	config_id INTEGER NOT NULL REFERENCES configs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (config_id, name)
);

CREATE TABLE IF NOT EXISTS leds (
	config_id INTEGER NOT NULL REFERENCES configs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	chip TEXT,
	line INTEGER NOT NULL,
	active_low BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (config_id, name)
);

CREATE TABLE IF NOT EXISTS buttons (
	config_id INTEGER NOT NULL REFERENCES configs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (config_id, name)
);
`

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Scalar sections are stored as JSON documents; devices, LEDs and buttons get
// their own tables so they can be listed and edited individually.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	sections := map[string]any{
		"network":   &config.Network,
		"server":    &config.Server,
		"indicator": &config.Indicator,
		"domoticz":  &config.Domoticz,
		"mqtt":      &config.MQTT,
		"status":    &config.Status,
	}

	rows, err := s.db.Query(`
		SELECT section, body FROM config_sections
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query config sections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var section, body string
		if err := rows.Scan(&section, &body); err != nil {
			return nil, fmt.Errorf("failed to scan config section: %w", err)
		}
		target, ok := sections[section]
		if !ok {
			return nil, fmt.Errorf("unknown config section %q", section)
		}
		if err := json.Unmarshal([]byte(body), target); err != nil {
			return nil, fmt.Errorf("failed to decode section %s: %w", section, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if config.Devices, err = s.GetDevices(); err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}
	if config.LEDs, err = s.GetLEDs(); err != nil {
		return nil, fmt.Errorf("failed to load leds: %w", err)
	}
	if config.Buttons, err = s.GetButtons(); err != nil {
		return nil, fmt.Errorf("failed to load buttons: %w", err)
	}

	return config, nil
}

// GetDevices returns device configurations from the database
func (s *SQLiteProvider) GetDevices() ([]DeviceData, error) {
	rows, err := s.db.Query(`
		SELECT body FROM devices
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []DeviceData
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		var device DeviceData
		if err := json.Unmarshal([]byte(body), &device); err != nil {
			return nil, fmt.Errorf("failed to decode device: %w", err)
		}
		devices = append(devices, device)
	}

	return devices, rows.Err()
}

// GetLEDs returns LED configurations from the database
func (s *SQLiteProvider) GetLEDs() ([]LEDData, error) {
	rows, err := s.db.Query(`
		SELECT name, chip, line, active_low FROM leds
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leds: %w", err)
	}
	defer rows.Close()

	var leds []LEDData
	for rows.Next() {
		var led LEDData
		var chip sql.NullString
		if err := rows.Scan(&led.Name, &chip, &led.Line, &led.ActiveLow); err != nil {
			return nil, fmt.Errorf("failed to scan led row: %w", err)
		}
		if chip.Valid {
			led.Chip = chip.String
		}
		leds = append(leds, led)
	}

	return leds, rows.Err()
}

// GetButtons returns button configurations from the database
func (s *SQLiteProvider) GetButtons() ([]ButtonData, error) {
	rows, err := s.db.Query(`
		SELECT body FROM buttons
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query buttons: %w", err)
	}
	defer rows.Close()

	var buttons []ButtonData
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan button row: %w", err)
		}
		var button ButtonData
		if err := json.Unmarshal([]byte(body), &button); err != nil {
			return nil, fmt.Errorf("failed to decode button: %w", err)
		}
		buttons = append(buttons, button)
	}

	return buttons, rows.Err()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored default configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return err
	}

	sections := map[string]any{
		"network":  configData.Network,
		"server":   configData.Server,
		"domoticz": configData.Domoticz,
	}
	if configData.Indicator != nil {
		sections["indicator"] = configData.Indicator
	}
	if configData.MQTT != nil {
		sections["mqtt"] = configData.MQTT
	}
	if configData.Status != nil {
		sections["status"] = configData.Status
	}

	for name, value := range sections {
		body, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode section %s: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO config_sections (config_id, section, body) VALUES (?, ?, ?)`,
			configID, name, string(body),
		); err != nil {
			return fmt.Errorf("failed to insert section %s: %w", name, err)
		}
	}

	for i := range configData.Devices {
		if err := insertJSONRow(tx, "devices", configID, i, &configData.Devices[i]); err != nil {
			return err
		}
	}

	for i, led := range configData.LEDs {
		if _, err := tx.Exec(
			`INSERT INTO leds (config_id, position, name, chip, line, active_low) VALUES (?, ?, ?, ?, ?, ?)`,
			configID, i, led.Name, nullString(led.Chip), led.Line, led.ActiveLow,
		); err != nil {
			return fmt.Errorf("failed to insert led %s: %w", led.Name, err)
		}
	}

	for i := range configData.Buttons {
		if err := insertJSONRow(tx, "buttons", configID, i, &configData.Buttons[i]); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE configs SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, configID); err != nil {
		return fmt.Errorf("failed to touch config: %w", err)
	}

	return tx.Commit()
}

func insertJSONRow(tx *sql.Tx, table string, configID int64, position int, item any) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode %s row: %w", table, err)
	}

	switch v := item.(type) {
	case *DeviceData:
		_, err = tx.Exec(
			`INSERT INTO devices (config_id, position, name, type, body) VALUES (?, ?, ?, ?, ?)`,
			configID, position, v.Name, v.Type, string(body),
		)
	case *ButtonData:
		_, err = tx.Exec(
			`INSERT INTO buttons (config_id, position, name, body) VALUES (?, ?, ?, ?)`,
			configID, position, v.Name, string(body),
		)
	default:
		return fmt.Errorf("unsupported row type %T", item)
	}
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM configs WHERE name = 'default'`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up config: %w", err)
	}

	result, err := tx.Exec(`INSERT INTO configs (name) VALUES ('default')`)
	if err != nil {
		return 0, fmt.Errorf("failed to insert config: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	for _, table := range []string{"config_sections", "devices", "leds", "buttons"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE config_id = ?", configID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
