package db

import (
	"context"
)

// Setting keys.
const (
	// SettingActiveUser holds the id of the account that is signed in on
	// this device. Absent while signed out.
	SettingActiveUser = "active_user_id"
)

// Setting returns a device-local setting and whether it is set.
func (db *DB) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fault("read setting "+key, err)
	}
	return value, true, nil
}

// SetSetting writes a device-local setting. Settings are not published.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return setSetting(ctx, db.conn, key, value)
}

// DeleteSetting removes a device-local setting.
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return deleteSetting(ctx, db.conn, key)
}

// activeUser reads SettingActiveUser through q, "" when unset.
func activeUser(ctx context.Context, q dbtx) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", SettingActiveUser).Scan(&value)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fault("read active user", err)
	}
	return value, nil
}

func setSetting(ctx context.Context, ex dbtx, key, value string) error {
	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := ex.ExecContext(ctx, query, key, value); err != nil {
		return fault("write setting "+key, err)
	}
	return nil
}

func deleteSetting(ctx context.Context, ex dbtx, key string) error {
	if _, err := ex.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fault("delete setting "+key, err)
	}
	return nil
}
