package rest

import (
	"net/http"

	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (h *handlers) createComment(c *gin.Context) {
	var in services.CreateCommentInput
	if !h.bindJSON(c, &in) {
		return
	}
	cm, err := h.svc.Comments.Create(c.Request.Context(), identity(c), in)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (h *handlers) listComments(c *gin.Context) {
	list, err := h.svc.Comments.List(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) updateComment(c *gin.Context) {
	var in services.UpdateCommentInput
	if !h.bindJSON(c, &in) {
		return
	}
	cm, err := h.svc.Comments.Update(c.Request.Context(), identity(c), c.Param("id"), in)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cm)
}

func (h *handlers) deleteComment(c *gin.Context) {
	if err := h.svc.Comments.Delete(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "comment has been deleted"})
}
