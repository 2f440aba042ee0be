package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lakshya820/VoicetoVoice/internal/observability"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	grammar_result TEXT NOT NULL,
	swot_analysis TEXT NOT NULL,
	sentiment_score TEXT NOT NULL,
	created_at REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS chatbot_scores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	average_handle_time TEXT NOT NULL,
	average_response_time REAL NOT NULL,
	average_type_speed REAL NOT NULL,
	csi_score REAL NOT NULL,
	created_at REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS speech_assessment_scores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	accuracy_score REAL NOT NULL,
	fluency_score REAL NOT NULL,
	completeness_score REAL NOT NULL,
	pronunciation_score REAL NOT NULL,
	created_at REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_results_created ON analysis_results(created_at);
CREATE INDEX IF NOT EXISTS idx_chatbot_scores_created ON chatbot_scores(created_at);
CREATE INDEX IF NOT EXISTS idx_speech_scores_created ON speech_assessment_scores(created_at);
`

// Store is the SQLite-backed score store. Rows are written once and never
// updated.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; an in-memory database also only exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Migrate creates the score tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks the database connection. It matches observability.HealthCheckFunc.
func (s *Store) Ping(ctx context.Context) (bool, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertAnalysis stores an assessment result and returns its id.
func (s *Store) InsertAnalysis(ctx context.Context, rec AnalysisRecord) (int64, error) {
	return s.insert(ctx, "analysis_results", `
		INSERT INTO analysis_results (grammar_result, swot_analysis, sentiment_score, created_at)
		VALUES (?, ?, ?, ?)
	`, rec.GrammarResult, rec.SWOTAnalysis, rec.SentimentScore, s.timestamp(rec.CreatedAt))
}

// InsertChatbotScore stores a chatbot score and returns its id.
func (s *Store) InsertChatbotScore(ctx context.Context, rec ChatbotScoreRecord) (int64, error) {
	return s.insert(ctx, "chatbot_scores", `
		INSERT INTO chatbot_scores (average_handle_time, average_response_time, average_type_speed, csi_score, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.AverageHandleTime, rec.AverageResponseTime, rec.AverageTypeSpeed, rec.CSIScore, s.timestamp(rec.CreatedAt))
}

// InsertSpeechScore stores a speech assessment score and returns its id.
func (s *Store) InsertSpeechScore(ctx context.Context, rec SpeechScoreRecord) (int64, error) {
	return s.insert(ctx, "speech_assessment_scores", `
		INSERT INTO speech_assessment_scores (accuracy_score, fluency_score, completeness_score, pronunciation_score, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.AccuracyScore, rec.FluencyScore, rec.CompletenessScore, rec.PronunciationScore, s.timestamp(rec.CreatedAt))
}

func (s *Store) insert(ctx context.Context, table, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		observability.RecordPersistenceWrite(table, false)
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		observability.RecordPersistenceWrite(table, false)
		return 0, fmt.Errorf("insert %s: last id: %w", table, err)
	}
	observability.RecordPersistenceWrite(table, true)
	return id, nil
}

// LatestAnalysis returns the most recent assessment result, or nil when the
// table is empty.
func (s *Store) LatestAnalysis(ctx context.Context) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, grammar_result, swot_analysis, sentiment_score, created_at
		FROM analysis_results
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)

	var rec AnalysisRecord
	var createdAt float64
	if err := row.Scan(&rec.ID, &rec.GrammarResult, &rec.SWOTAnalysis, &rec.SentimentScore, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan analysis result: %w", err)
	}
	rec.CreatedAt = timeFromUnix(createdAt)
	return &rec, nil
}

// LatestChatbotScore returns the most recent chatbot score, or nil.
func (s *Store) LatestChatbotScore(ctx context.Context) (*ChatbotScoreRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, average_handle_time, average_response_time, average_type_speed, csi_score, created_at
		FROM chatbot_scores
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)

	var rec ChatbotScoreRecord
	var createdAt float64
	if err := row.Scan(&rec.ID, &rec.AverageHandleTime, &rec.AverageResponseTime,
		&rec.AverageTypeSpeed, &rec.CSIScore, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chatbot score: %w", err)
	}
	rec.CreatedAt = timeFromUnix(createdAt)
	return &rec, nil
}

// LatestSpeechScore returns the most recent speech assessment score, or nil.
func (s *Store) LatestSpeechScore(ctx context.Context) (*SpeechScoreRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, accuracy_score, fluency_score, completeness_score, pronunciation_score, created_at
		FROM speech_assessment_scores
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)

	var rec SpeechScoreRecord
	var createdAt float64
	if err := row.Scan(&rec.ID, &rec.AccuracyScore, &rec.FluencyScore,
		&rec.CompletenessScore, &rec.PronunciationScore, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan speech score: %w", err)
	}
	rec.CreatedAt = timeFromUnix(createdAt)
	return &rec, nil
}

func (s *Store) timestamp(t time.Time) float64 {
	if t.IsZero() {
		t = s.now()
	}
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
