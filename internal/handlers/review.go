package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/codecritic/internal/models"
	"github.com/huangang/codecritic/internal/services"
	"github.com/huangang/codecritic/internal/store"
	"github.com/huangang/codecritic/pkg/logger"
	"github.com/huangang/codecritic/pkg/response"
)

type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Submit accepts a snippet and returns the pending record without waiting for the review
// POST /api/reviews
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req services.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	review, err := h.reviews.Submit(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// List returns a page of reviews, newest first
// GET /api/reviews
func (h *ReviewHandler) List(c *gin.Context) {
	var req services.ListReviewsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	reviews, err := h.reviews.List(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, reviews)
}

// GetByID returns one review
// GET /api/reviews/:id
func (h *ReviewHandler) GetByID(c *gin.Context) {
	review, err := h.reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// Languages lists the accepted language identifiers
// GET /api/languages
func (h *ReviewHandler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": models.AllLanguages})
}

var (
	errSchedulingFailed = response.NewServiceUnavailable("review could not be scheduled, please retry")
	errInternal         = response.NewServerError("internal server error")
)

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidReview):
		response.BadRequest(c, err.Error())
	case errors.Is(err, store.ErrRecordNotFound):
		response.NotFound(c, "Review not found")
	case errors.Is(err, services.ErrSchedulingFailed):
		response.Error(c, errSchedulingFailed.Wrap(err))
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("[API] Request failed")
		response.Error(c, errInternal.Wrap(err))
	}
}
