package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
)

// Client talks to the ExStem backend's student API. It implements the
// monitor's three collaborator contracts (violation reporting, answer
// submission, checkpointing) plus the session bootstrap calls.
type Client struct {
	baseURL string
	examID  uuid.UUID
	token   string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient builds a backend client. baseURL points at the API root
// (e.g. https://exam.example.sch.id/api/v1); token is the student session JWT.
func NewClient(baseURL string, examID uuid.UUID, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		examID:  examID,
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "backend_client").Logger(),
	}
}

// envelope mirrors the backend's standard response shape.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx or error-enveloped backend response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: HTTP %d", e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode >= 400 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) examPath(suffix string) string {
	return fmt.Sprintf("/student/exams/%s/%s", c.examID, suffix)
}

// ─── Session bootstrap ──────────────────────────────────────────────

// SessionInfo is the backend's session record.
type SessionInfo struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	StudentID int       `json:"student_id"`
	StartedAt time.Time `json:"started_at"`
	Status    string    `json:"status"`
}

// JoinExam validates the entry token and creates (or resumes) the student's
// session. Idempotent on the backend side.
func (c *Client) JoinExam(ctx context.Context, entryToken string) (*SessionInfo, error) {
	var out struct {
		Session SessionInfo `json:"session"`
	}
	body := map[string]string{"entry_token": entryToken}
	if err := c.do(ctx, http.MethodPost, c.examPath("join"), body, &out); err != nil {
		return nil, fmt.Errorf("join exam: %w", err)
	}
	return &out.Session, nil
}

// GetExamPaper fetches the ordered question set. The payload never contains
// correct answers.
func (c *Client) GetExamPaper(ctx context.Context) (*model.ExamPaper, error) {
	var paper model.ExamPaper
	if err := c.do(ctx, http.MethodGet, c.examPath("paper"), nil, &paper); err != nil {
		return nil, fmt.Errorf("get exam paper: %w", err)
	}
	return &paper, nil
}

// ExamState is the resume payload: previously autosaved answers and the
// authoritative remaining time.
type ExamState struct {
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingTime    float64           `json:"remaining_time"`
}

// GetExamState fetches the current session state so a restarted agent resumes
// where the candidate left off.
func (c *Client) GetExamState(ctx context.Context) (*ExamState, error) {
	var state ExamState
	if err := c.do(ctx, http.MethodGet, c.examPath("state"), nil, &state); err != nil {
		return nil, fmt.Errorf("get exam state: %w", err)
	}
	return &state, nil
}

// ─── Monitor collaborators ──────────────────────────────────────────

// ReportViolation records one violation and returns the authoritative
// cumulative count for the session.
func (c *Client) ReportViolation(ctx context.Context, v model.Violation) (int, error) {
	var out struct {
		ViolationCount int `json:"violation_count"`
	}
	if err := c.do(ctx, http.MethodPost, c.examPath("violations"), v, &out); err != nil {
		return 0, fmt.Errorf("report violation: %w", err)
	}
	return out.ViolationCount, nil
}

// SubmitAnswers finalizes the session. The backend treats a retry with an
// identical payload as idempotent.
func (c *Client) SubmitAnswers(ctx context.Context, answers map[uuid.UUID]string) error {
	body := map[string]interface{}{"answers": stringKeys(answers)}
	if err := c.do(ctx, http.MethodPost, c.examPath("submit"), body, nil); err != nil {
		return fmt.Errorf("submit answers: %w", err)
	}
	return nil
}

// SaveCheckpoint sends a partial-progress snapshot. Callers treat failures as
// best effort.
func (c *Client) SaveCheckpoint(ctx context.Context, timeLeftSeconds int, answers map[uuid.UUID]string) error {
	body := map[string]interface{}{
		"time_left_seconds": timeLeftSeconds,
		"answers":           stringKeys(answers),
	}
	if err := c.do(ctx, http.MethodPost, c.examPath("checkpoint"), body, nil); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func stringKeys(answers map[uuid.UUID]string) map[string]string {
	out := make(map[string]string, len(answers))
	for qid, key := range answers {
		out[qid.String()] = key
	}
	return out
}
