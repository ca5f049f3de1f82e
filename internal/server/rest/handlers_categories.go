package rest

import (
	"net/http"

	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (h *handlers) createCategory(c *gin.Context) {
	var in services.CreateCategoryInput
	if !h.bindJSON(c, &in) {
		return
	}
	cat, err := h.svc.Categories.Create(c.Request.Context(), identity(c), in)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *handlers) listCategories(c *gin.Context) {
	list, err := h.svc.Categories.List(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) deleteCategory(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Categories.Delete(c.Request.Context(), id); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Message: "category has been deleted", ID: id})
}
