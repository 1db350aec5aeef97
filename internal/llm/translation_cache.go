package llm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TranslationCache stores translations keyed by source language and text.
type TranslationCache interface {
	Get(ctx context.Context, lang, text string) (string, bool, error)
	Put(ctx context.Context, lang, text, translated string) error
}

// SQLiteTranslationCache keeps translations in the item_name_translations table.
type SQLiteTranslationCache struct {
	db *sql.DB
}

// NewSQLiteTranslationCache creates a cache over an open database.
func NewSQLiteTranslationCache(db *sql.DB) *SQLiteTranslationCache {
	return &SQLiteTranslationCache{db: db}
}

// Get returns the cached translation, if any.
func (c *SQLiteTranslationCache) Get(ctx context.Context, lang, text string) (string, bool, error) {
	var translated string
	err := c.db.QueryRowContext(ctx,
		`SELECT translated_text FROM item_name_translations WHERE source_lang = ? AND source_text = ?`,
		lang, text,
	).Scan(&translated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read translation cache: %w", err)
	}
	return translated, true, nil
}

// Put stores or replaces a translation.
func (c *SQLiteTranslationCache) Put(ctx context.Context, lang, text, translated string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO item_name_translations (source_lang, source_text, translated_text, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_lang, source_text) DO UPDATE SET translated_text = excluded.translated_text`,
		lang, text, translated, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write translation cache: %w", err)
	}
	return nil
}
