package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/rest/middleware"
	"github.com/Guyuepp/popularity-service/internal/rest/request"
	"github.com/Guyuepp/popularity-service/internal/rest/response"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

// ItemHandler represent the httphandler for items, likes and their projections
type ItemHandler struct {
	Items       domain.ItemUsecase
	Likes       domain.LikeUsecase
	Projections domain.ProjectionUsecase
}

func NewItemHandler(items domain.ItemUsecase, likes domain.LikeUsecase, projections domain.ProjectionUsecase) *ItemHandler {
	return &ItemHandler{
		Items:       items,
		Likes:       likes,
		Projections: projections,
	}
}

// Store will store the item by given request body
func (h *ItemHandler) Store(c *gin.Context) {
	var req request.Item
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		return
	}

	it := req.ToDomain(c.GetString(middleware.ContextUserID))
	if err := h.Items.Create(c.Request.Context(), &it); err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, response.NewItemFromDomain(&it))
}

// GetByID will get item by given id, marking whether the caller liked it
func (h *ItemHandler) GetByID(c *gin.Context) {
	v, err := h.Items.Get(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.NewItemViewFromDomain(&v))
}

// Delete will delete the item by given param
func (h *ItemHandler) Delete(c *gin.Context) {
	if err := h.Items.Delete(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID)); err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// Like records a like of the caller
func (h *ItemHandler) Like(c *gin.Context) {
	it, err := h.Likes.Like(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.LikeState{ID: it.ID, Likes: it.Likes, Liked: true})
}

// Unlike withdraws the caller's like
func (h *ItemHandler) Unlike(c *gin.Context) {
	it, err := h.Likes.Unlike(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.LikeState{ID: it.ID, Likes: it.Likes, Liked: false})
}

func (h *ItemHandler) GetProjection(c *gin.Context) {
	p, err := h.Projections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.NewProjectionFromDomain(&p))
}

// FetchTop lists the projections ranked by ?sort= (likes, likesDay, likesWeek)
func (h *ItemHandler) FetchTop(c *gin.Context) {
	var req request.Top
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		return
	}
	field := domain.SortByLikes
	if req.Sort != "" {
		field = domain.SortField(req.Sort)
	}

	list, err := h.Projections.Top(c.Request.Context(), field, req.Limit)
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	res := make([]response.Projection, len(list))
	for i := range list {
		res[i] = response.NewProjectionFromDomain(&list[i])
	}
	c.JSON(http.StatusOK, res)
}

// getStatusCode will get the code of the error returned by the usecases
func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, domain.ErrBadParamInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrProjectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrCursorConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		logrus.WithError(err).Warn("request timed out")
		return http.StatusGatewayTimeout
	default:
		logrus.Error(err)
		return http.StatusInternalServerError
	}
}
