package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/studymate/backend/internal/services"
	"github.com/studymate/backend/pkg/logger"
	"github.com/studymate/backend/pkg/response"
)

// AnswerHandler exposes the question answering and answer analysis endpoints.
type AnswerHandler struct {
	answerService *services.AnswerService
}

func NewAnswerHandler(answerService *services.AnswerService) *AnswerHandler {
	return &AnswerHandler{answerService: answerService}
}

// Generate handles POST /api/answers.
func (h *AnswerHandler) Generate(c *gin.Context) {
	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.answerService.GenerateAnswer(c.Request.Context(), &req)
	if err != nil {
		respondAnswerError(c, err)
		return
	}

	response.Success(c, resp)
}

type analyzeRequest struct {
	Question    string               `json:"question" binding:"required"`
	Answer      string               `json:"answer" binding:"required"`
	UserContext services.UserContext `json:"user_context"`
}

// Analyze handles POST /api/answers/analyze.
func (h *AnswerHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	analysis, err := h.answerService.Analyze(c.Request.Context(), req.Question, req.Answer, req.UserContext)
	if err != nil {
		respondAnswerError(c, err)
		return
	}

	response.Success(c, analysis)
}

// respondAnswerError maps service errors onto HTTP statuses. Failures are
// logged here, at the boundary, so the services stay quiet about expected
// errors.
func respondAnswerError(c *gin.Context, err error) {
	var cfgErr *services.ConfigurationError
	var upErr *services.UpstreamError
	var serErr *services.SerializationError

	switch {
	case errors.As(err, &cfgErr):
		logger.Errorf("[Answer] Configuration error: %v", err)
		response.Error(c, response.NewServiceUnavailable(cfgErr.Message))
	case errors.As(err, &upErr):
		logger.Errorf("[Answer] Upstream error from %s (%s): %v", upErr.Provider, upErr.Model, upErr.Err)
		response.Error(c, response.NewBadGateway("upstream model request failed"))
	case errors.As(err, &serErr):
		logger.Errorf("[Answer] Malformed model output: %v", err)
		response.Error(c, response.NewBadGateway("model returned malformed output"))
	default:
		logger.Errorf("[Answer] Request failed: %v", err)
		response.Error(c, response.NewBadRequest(err.Error()))
	}
}
