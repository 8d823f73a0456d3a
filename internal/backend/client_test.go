package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]interface{}
}

// newTestClient spins up a backend stub that answers every request with the
// given envelope and records what it received.
func newTestClient(t *testing.T, status int, data string, apiErr *apiError) (*Client, uuid.UUID, *capturedRequest) {
	t.Helper()

	examID := uuid.New()
	captured := &capturedRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		if r.Body != nil {
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			captured.body = body
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  json.RawMessage(data),
			"error": apiErr,
		})
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, examID, "session-jwt", zerolog.Nop()), examID, captured
}

func TestJoinExam(t *testing.T) {
	sessionID := uuid.New()
	data := `{"session": {"id": "` + sessionID.String() + `", "status": "in_progress", "student_id": 7}}`
	client, examID, captured := newTestClient(t, http.StatusOK, data, nil)

	info, err := client.JoinExam(context.Background(), "ENTRY-123")
	require.NoError(t, err)
	require.Equal(t, sessionID, info.ID)
	require.Equal(t, 7, info.StudentID)

	require.Equal(t, http.MethodPost, captured.method)
	require.Equal(t, "/student/exams/"+examID.String()+"/join", captured.path)
	require.Equal(t, "Bearer session-jwt", captured.auth)
	require.Equal(t, "ENTRY-123", captured.body["entry_token"])
}

func TestGetExamPaper(t *testing.T) {
	qid := uuid.New()
	data := `{
		"exam_id": "` + uuid.New().String() + `",
		"title": "Ujian Matematika",
		"duration_minutes": 90,
		"questions": [
			{"id": "` + qid.String() + `", "question_text": "1+1?", "options": {"A": "2", "B": "3"}, "order_num": 1}
		]
	}`
	client, examID, captured := newTestClient(t, http.StatusOK, data, nil)

	paper, err := client.GetExamPaper(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Ujian Matematika", paper.Title)
	require.Len(t, paper.Questions, 1)
	require.Equal(t, qid, paper.Questions[0].ID)
	require.Equal(t, "2", paper.Questions[0].Options["A"])

	require.Equal(t, http.MethodGet, captured.method)
	require.Equal(t, "/student/exams/"+examID.String()+"/paper", captured.path)
}

func TestGetExamState(t *testing.T) {
	qid := uuid.New()
	data := `{"autosaved_answers": {"` + qid.String() + `": "B"}, "remaining_time": 1804.5}`
	client, _, _ := newTestClient(t, http.StatusOK, data, nil)

	state, err := client.GetExamState(context.Background())
	require.NoError(t, err)
	require.Equal(t, "B", state.AutosavedAnswers[qid.String()])
	require.Equal(t, 1804.5, state.RemainingTime)
}

func TestReportViolation(t *testing.T) {
	client, examID, captured := newTestClient(t, http.StatusOK, `{"violation_count": 2}`, nil)

	count, err := client.ReportViolation(context.Background(), model.Violation{
		Reason:    "left full-screen mode",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.Equal(t, http.MethodPost, captured.method)
	require.Equal(t, "/student/exams/"+examID.String()+"/violations", captured.path)
	require.Equal(t, "left full-screen mode", captured.body["reason"])
}

func TestSubmitAnswers(t *testing.T) {
	client, examID, captured := newTestClient(t, http.StatusOK, `null`, nil)

	qid := uuid.New()
	err := client.SubmitAnswers(context.Background(), map[uuid.UUID]string{qid: "A"})
	require.NoError(t, err)

	require.Equal(t, "/student/exams/"+examID.String()+"/submit", captured.path)
	answers, ok := captured.body["answers"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "A", answers[qid.String()])
}

func TestSaveCheckpoint(t *testing.T) {
	client, examID, captured := newTestClient(t, http.StatusOK, `null`, nil)

	qid := uuid.New()
	err := client.SaveCheckpoint(context.Background(), 871, map[uuid.UUID]string{qid: "C"})
	require.NoError(t, err)

	require.Equal(t, "/student/exams/"+examID.String()+"/checkpoint", captured.path)
	require.Equal(t, float64(871), captured.body["time_left_seconds"])
}

func TestErrorEnvelope(t *testing.T) {
	client, _, _ := newTestClient(t, http.StatusForbidden, `null`, &apiError{
		Code:    "EXAM_NOT_ACTIVE",
		Message: "Ujian tidak aktif",
	})

	_, err := client.JoinExam(context.Background(), "ENTRY-123")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, "EXAM_NOT_ACTIVE", apiErr.Code)
	require.Contains(t, apiErr.Error(), "EXAM_NOT_ACTIVE")
}

func TestErrorStatusWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, uuid.New(), "session-jwt", zerolog.Nop())

	_, err := client.GetExamState(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Empty(t, apiErr.Code)
}

func TestBaseURLTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{}})
	}))
	t.Cleanup(srv.Close)

	examID := uuid.New()
	client := NewClient(srv.URL+"/", examID, "session-jwt", zerolog.Nop())
	_, err := client.GetExamState(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/student/exams/"+examID.String()+"/state", gotPath)
}
