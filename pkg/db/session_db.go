package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
)

const (
	CREATE_SESSION_TABLE = `CREATE TABLE IF NOT EXISTS translation_sessions(
		id VARCHAR(36) PRIMARY KEY,
		input_file VARCHAR(255) NOT NULL,
		examples_file VARCHAR(255) NOT NULL,
		action VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL,
		combined_file VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`

	CREATE_LANGUAGE_TABLE = `CREATE TABLE IF NOT EXISTS translation_languages(
		session_id VARCHAR(36) NOT NULL REFERENCES translation_sessions(id),
		language VARCHAR(255) NOT NULL,
		state VARCHAR(32) NOT NULL,
		file VARCHAR(255) NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, language)
	);`
)

var ErrSessionNotFound = errors.New("session not found")

type SessionDatabase interface {
	CreateSession(ctx context.Context, session models.Session, languages []string) error
	RecordLanguage(ctx context.Context, result models.LanguageResult) error
	FinishSession(ctx context.Context, sessionID string, status models.SessionStatus, combinedFile string) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, []models.LanguageResult, error)
}

type SessionDatabaseImpl struct {
	db *sqlx.DB
}

func NewSessionDatabase(autoCreate bool, db *sqlx.DB) (*SessionDatabaseImpl, error) {
	if autoCreate {
		for _, stmt := range []string{CREATE_SESSION_TABLE, CREATE_LANGUAGE_TABLE} {
			if _, err := db.Exec(stmt); err != nil {
				return nil, err
			}
		}
	}
	return &SessionDatabaseImpl{db: db}, nil
}

// CreateSession inserts the session and one running row per language.
func (r *SessionDatabaseImpl) CreateSession(ctx context.Context, session models.Session, languages []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO translation_sessions(id, input_file, examples_file, action, status) VALUES($1, $2, $3, $4, $5)",
		session.ID, session.InputFile, session.ExamplesFile, session.Action, session.Status)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	for _, lang := range languages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO translation_languages(session_id, language, state) VALUES($1, $2, $3)",
			session.ID, lang, models.BarRunning)
		if err != nil {
			return fmt.Errorf("failed to insert language %s: %w", lang, err)
		}
	}
	return tx.Commit()
}

func (r *SessionDatabaseImpl) RecordLanguage(ctx context.Context, result models.LanguageResult) error {
	query := `INSERT INTO translation_languages(session_id, language, state, file) VALUES($1, $2, $3, $4)
		ON CONFLICT (session_id, language) DO UPDATE SET state = EXCLUDED.state, file = EXCLUDED.file`
	_, err := r.db.ExecContext(ctx, query, result.SessionID, result.Language, result.State, result.File)
	return err
}

func (r *SessionDatabaseImpl) FinishSession(ctx context.Context, sessionID string, status models.SessionStatus, combinedFile string) error {
	query := "UPDATE translation_sessions SET status = $1, combined_file = $2, updated_at = NOW() WHERE id = $3"
	res, err := r.db.ExecContext(ctx, query, status, combinedFile, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionDatabaseImpl) GetSession(ctx context.Context, sessionID string) (*models.Session, []models.LanguageResult, error) {
	session := &models.Session{}
	query := "SELECT id, input_file, examples_file, action, status, combined_file, created_at, updated_at FROM translation_sessions WHERE id = $1"
	if err := r.db.GetContext(ctx, session, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	var results []models.LanguageResult
	query = "SELECT session_id, language, state, file FROM translation_languages WHERE session_id = $1 ORDER BY language"
	if err := r.db.SelectContext(ctx, &results, query, sessionID); err != nil {
		return nil, nil, err
	}
	return session, results, nil
}
