// Package store persists assessment, chatbot and speech scores in SQLite.
package store

import "time"

// AnalysisRecord is one completed assessment: grammar result, SWOT text and
// satisfaction index. The grammar and sentiment columns hold JSON text.
type AnalysisRecord struct {
	ID             int64     `json:"id"`
	GrammarResult  string    `json:"grammar_result"`
	SWOTAnalysis   string    `json:"swot_analysis"`
	SentimentScore string    `json:"sentiment_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatbotScoreRecord summarizes one simulated support chat.
type ChatbotScoreRecord struct {
	ID                  int64     `json:"id"`
	AverageHandleTime   string    `json:"average_handle_time"`
	AverageResponseTime float64   `json:"average_response_time"`
	AverageTypeSpeed    float64   `json:"average_type_speed"`
	CSIScore            float64   `json:"csi_score"`
	CreatedAt           time.Time `json:"created_at"`
}

// SpeechScoreRecord holds pronunciation scores averaged over the trials of one
// assessment.
type SpeechScoreRecord struct {
	ID                 int64     `json:"id"`
	AccuracyScore      float64   `json:"accuracy_score"`
	FluencyScore       float64   `json:"fluency_score"`
	CompletenessScore  float64   `json:"completeness_score"`
	PronunciationScore float64   `json:"pronunciation_score"`
	CreatedAt          time.Time `json:"created_at"`
}
