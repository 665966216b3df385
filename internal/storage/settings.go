package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/0x0BSoD/constellation/internal/model"
)

type SettingsSQLStorage struct {
	db *sqlx.DB
}

func NewSettingsStorage(db *sqlx.DB) *SettingsSQLStorage {
	return &SettingsSQLStorage{db: db}
}

// Settings reads every known setting. Keys that were never saved are empty.
func (s *SettingsSQLStorage) Settings(ctx context.Context) (model.SiteSettings, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return model.SiteSettings{}, err
	}
	defer conn.Close()

	var rows []dbSetting
	if err := conn.SelectContext(ctx, &rows, `SELECT key, value FROM site_settings`); err != nil {
		return model.SiteSettings{}, err
	}

	var settings model.SiteSettings
	lo.ForEach(rows, func(row dbSetting, _ int) {
		settings.Set(row.Key, row.Value)
	})

	return settings, nil
}

// Save upserts all settings in a single transaction.
func (s *SettingsSQLStorage) Save(ctx context.Context, settings model.SiteSettings) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := tx.Rebind(`INSERT INTO site_settings (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`)

	for _, kv := range settings.Pairs() {
		if _, err = tx.ExecContext(ctx, query, kv[0], kv[1]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type dbSetting struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}
