package bridge

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stemsi/exstem-agent/internal/response"
	"github.com/stemsi/exstem-agent/internal/session"
	"github.com/stemsi/exstem-agent/internal/validator"
)

// Handler serves the bridge's REST endpoints for the exam surface.
type Handler struct {
	mon *session.Monitor
	log zerolog.Logger
}

func NewHandler(mon *session.Monitor, log zerolog.Logger) *Handler {
	return &Handler{
		mon: mon,
		log: log.With().Str("component", "bridge_handler").Logger(),
	}
}

// GetState godoc
// GET /api/v1/session/state
// Returns the full session view so the surface can (re)render after a reload.
func (h *Handler) GetState(c *gin.Context) {
	response.Success(c, http.StatusOK, h.mon.Session().View())
}

// AnswerRequest is the payload for selecting an option.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	OptionKey  string `json:"option_key" binding:"required,min=1,max=10"`
}

// SelectAnswer godoc
// POST /api/v1/session/answers
// Records the candidate's selection; re-selection replaces the previous key.
func (h *Handler) SelectAnswer(c *gin.Context) {
	var req AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	qid, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.mon.SelectAnswer(qid, req.OptionKey); err != nil {
		switch {
		case errors.Is(err, model.ErrUnknownQuestion):
			response.Fail(c, http.StatusNotFound, response.ErrUnknownQuestion)
		case errors.Is(err, model.ErrUnknownOption):
			response.Fail(c, http.StatusBadRequest, response.ErrUnknownOption)
		case errors.Is(err, model.ErrInvalidTransition):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		default:
			h.log.Error().Err(err).Msg("Select answer failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Submit godoc
// POST /api/v1/session/submit
// Queues the candidate's manual finalization; the result is pushed over the
// stream (redirect on success, submit_error otherwise).
func (h *Handler) Submit(c *gin.Context) {
	h.mon.RequestSubmit()
	response.Success(c, http.StatusAccepted, gin.H{"status": "accepted"})
}
