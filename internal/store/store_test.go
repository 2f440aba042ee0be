package store

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return s
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() failed: %v", err)
	}
}

func TestStore_LatestOnEmptyTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	analysis, err := s.LatestAnalysis(ctx)
	if err != nil || analysis != nil {
		t.Errorf("LatestAnalysis() = %v, %v; want nil, nil", analysis, err)
	}
	chatbot, err := s.LatestChatbotScore(ctx)
	if err != nil || chatbot != nil {
		t.Errorf("LatestChatbotScore() = %v, %v; want nil, nil", chatbot, err)
	}
	speech, err := s.LatestSpeechScore(ctx)
	if err != nil || speech != nil {
		t.Errorf("LatestSpeechScore() = %v, %v; want nil, nil", speech, err)
	}
}

func TestStore_AnalysisRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := time.Unix(1700000000, 0)
	newer := older.Add(time.Minute)

	firstID, err := s.InsertAnalysis(ctx, AnalysisRecord{
		GrammarResult:  `{"total":50}`,
		SWOTAnalysis:   "Strengths: old",
		SentimentScore: `{"final_csi":0.5}`,
		CreatedAt:      older,
	})
	if err != nil {
		t.Fatalf("InsertAnalysis() failed: %v", err)
	}
	secondID, err := s.InsertAnalysis(ctx, AnalysisRecord{
		GrammarResult:  `{"total":75}`,
		SWOTAnalysis:   "Strengths: new",
		SentimentScore: `{"final_csi":1.0375}`,
		CreatedAt:      newer,
	})
	if err != nil {
		t.Fatalf("InsertAnalysis() failed: %v", err)
	}
	if secondID <= firstID {
		t.Errorf("Expected increasing ids, got %d then %d", firstID, secondID)
	}

	latest, err := s.LatestAnalysis(ctx)
	if err != nil {
		t.Fatalf("LatestAnalysis() failed: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected a latest analysis")
	}
	if latest.ID != secondID {
		t.Errorf("Expected id %d, got %d", secondID, latest.ID)
	}
	if latest.SWOTAnalysis != "Strengths: new" {
		t.Errorf("Unexpected SWOT %q", latest.SWOTAnalysis)
	}
	if latest.SentimentScore != `{"final_csi":1.0375}` {
		t.Errorf("Unexpected sentiment %q", latest.SentimentScore)
	}
	if !latest.CreatedAt.Equal(newer) {
		t.Errorf("Expected created_at %v, got %v", newer, latest.CreatedAt)
	}
}

func TestStore_LatestIsByTimestampNotID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	if _, err := s.InsertChatbotScore(ctx, ChatbotScoreRecord{
		AverageHandleTime: "00:05:00", CSIScore: 2, CreatedAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("InsertChatbotScore() failed: %v", err)
	}
	if _, err := s.InsertChatbotScore(ctx, ChatbotScoreRecord{
		AverageHandleTime: "00:01:00", CSIScore: 1, CreatedAt: base,
	}); err != nil {
		t.Fatalf("InsertChatbotScore() failed: %v", err)
	}

	latest, err := s.LatestChatbotScore(ctx)
	if err != nil {
		t.Fatalf("LatestChatbotScore() failed: %v", err)
	}
	if latest.AverageHandleTime != "00:05:00" {
		t.Errorf("Expected the newest row by created_at, got %+v", latest)
	}
}

func TestStore_ChatbotScoreFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertChatbotScore(ctx, ChatbotScoreRecord{
		AverageHandleTime:   "00:03:12",
		AverageResponseTime: 4.5,
		AverageTypeSpeed:    38.2,
		CSIScore:            1.0375,
	})
	if err != nil {
		t.Fatalf("InsertChatbotScore() failed: %v", err)
	}

	got, err := s.LatestChatbotScore(ctx)
	if err != nil {
		t.Fatalf("LatestChatbotScore() failed: %v", err)
	}
	if got.ID != id || got.AverageResponseTime != 4.5 || got.AverageTypeSpeed != 38.2 || got.CSIScore != 1.0375 {
		t.Errorf("Unexpected row %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected created_at to default to now")
	}
}

func TestStore_SpeechScore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertSpeechScore(ctx, SpeechScoreRecord{
		AccuracyScore:      0,
		FluencyScore:       81.5,
		CompletenessScore:  90,
		PronunciationScore: 77.25,
	})
	if err != nil {
		t.Fatalf("InsertSpeechScore() failed: %v", err)
	}

	got, err := s.LatestSpeechScore(ctx)
	if err != nil {
		t.Fatalf("LatestSpeechScore() failed: %v", err)
	}
	if got.ID != id || got.FluencyScore != 81.5 || got.PronunciationScore != 77.25 {
		t.Errorf("Unexpected row %+v", got)
	}
}

func TestStore_Ping(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.Ping(context.Background())
	if !ok || err != nil {
		t.Errorf("Ping() = %v, %v", ok, err)
	}
}

func TestTimeFromUnix(t *testing.T) {
	want := time.Unix(1700000000, 500000000)
	got := timeFromUnix(1700000000.5)
	if !got.Equal(want) {
		t.Errorf("timeFromUnix() = %v, want %v", got, want)
	}
}
