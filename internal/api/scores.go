package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakshya820/VoicetoVoice/internal/store"
)

const msgMissingFields = "Missing required score fields"

type testDBRequest struct {
	GrammarResult  json.RawMessage `json:"grammarResult"`
	SWOTAnalysis   json.RawMessage `json:"swotAnalysis"`
	SentimentScore json.RawMessage `json:"sentimentScore"`
}

type speechScoresRequest struct {
	AccuracyScore      *float64 `json:"accuracyScore"`
	FluencyScore       *float64 `json:"fluencyScore"`
	CompletenessScore  *float64 `json:"completenessScore"`
	PronunciationScore *float64 `json:"pronunciationScore"`
}

type chatbotScoresRequest struct {
	AverageHandleTime   json.RawMessage `json:"averageHandleTime"`
	AverageResponseTime *float64        `json:"averageResponseTime"`
	AverageTypeSpeed    *float64        `json:"averageTypeSpeed"`
	CSIScore            *float64        `json:"csiScore"`
}

// handleTestDB stores an analysis row from arbitrary JSON values. Objects are
// stored as their JSON text and strings as-is.
func (s *Server) handleTestDB(c *gin.Context) {
	var req testDBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err)
		return
	}

	id, err := s.store.InsertAnalysis(c.Request.Context(), store.AnalysisRecord{
		GrammarResult:  jsonText(req.GrammarResult),
		SWOTAnalysis:   jsonText(req.SWOTAnalysis),
		SentimentScore: jsonText(req.SentimentScore),
	})
	if err != nil {
		s.serverError(c, "Failed to save data to database", err)
		return
	}
	s.saved(c, "Data successfully saved to database", id)
}

func (s *Server) handleSpeechScores(c *gin.Context) {
	var req speechScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err)
		return
	}
	if req.FluencyScore == nil || req.CompletenessScore == nil || req.PronunciationScore == nil {
		s.badRequest(c, msgMissingFields, nil)
		return
	}

	rec := store.SpeechScoreRecord{
		FluencyScore:       *req.FluencyScore,
		CompletenessScore:  *req.CompletenessScore,
		PronunciationScore: *req.PronunciationScore,
	}
	if req.AccuracyScore != nil {
		rec.AccuracyScore = *req.AccuracyScore
	}

	id, err := s.store.InsertSpeechScore(c.Request.Context(), rec)
	if err != nil {
		s.serverError(c, "Failed to save speech scores", err)
		return
	}
	s.saved(c, "Speech scores successfully saved", id)
}

func (s *Server) handleChatbotScores(c *gin.Context) {
	var req chatbotScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err)
		return
	}
	if isAbsent(req.AverageHandleTime) || req.AverageResponseTime == nil || req.AverageTypeSpeed == nil || req.CSIScore == nil {
		s.badRequest(c, msgMissingFields, nil)
		return
	}

	id, err := s.store.InsertChatbotScore(c.Request.Context(), store.ChatbotScoreRecord{
		AverageHandleTime:   jsonText(req.AverageHandleTime),
		AverageResponseTime: *req.AverageResponseTime,
		AverageTypeSpeed:    *req.AverageTypeSpeed,
		CSIScore:            *req.CSIScore,
	})
	if err != nil {
		s.serverError(c, "Failed to save ChatBot scores", err)
		return
	}
	s.saved(c, "ChatBot scores successfully saved", id)
}

func (s *Server) handleLatestAnalysis(c *gin.Context) {
	rec, err := s.store.LatestAnalysis(c.Request.Context())
	if err != nil {
		s.serverError(c, "Failed to fetch latest analysis result", err)
		return
	}
	latest(c, rec)
}

func (s *Server) handleLatestChatbotScore(c *gin.Context) {
	rec, err := s.store.LatestChatbotScore(c.Request.Context())
	if err != nil {
		s.serverError(c, "Failed to fetch latest ChatBot score", err)
		return
	}
	latest(c, rec)
}

func (s *Server) handleLatestSpeechScore(c *gin.Context) {
	rec, err := s.store.LatestSpeechScore(c.Request.Context())
	if err != nil {
		s.serverError(c, "Failed to fetch latest speech score", err)
		return
	}
	latest(c, rec)
}

// latest writes {success, result}; a nil record becomes result: null.
func latest[T any](c *gin.Context, rec *T) {
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "result": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": rec})
}

func (s *Server) saved(c *gin.Context, message string, id int64) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "id": id})
}

func (s *Server) badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"success": false, "message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

func (s *Server) serverError(c *gin.Context, message string, err error) {
	s.logger.Error().Err(err).Str("path", c.FullPath()).Msg(message)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": message, "error": err.Error()})
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// jsonText returns the string value of a JSON string, or the compact JSON
// text of anything else. Absent values become "".
func jsonText(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
