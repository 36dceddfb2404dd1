package handlers

import (
	"net/http"

	"quizdeck/services"

	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	attemptService *services.AttemptService
	resultsService *services.ResultsService
}

func NewAttemptHandler(attemptService *services.AttemptService, resultsService *services.ResultsService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService, resultsService: resultsService}
}

func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	quizID, err := parseIDParam(c)
	if err != nil {
		return
	}

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.attemptService.SubmitAttempt(quizID, userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, summary)
}

func (h *AttemptHandler) GetResults(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	quizID, err := parseIDParam(c)
	if err != nil {
		return
	}

	view, err := h.resultsService.GetResults(c.Request.Context(), quizID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
