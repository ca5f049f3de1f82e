package rest

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (h *handlers) createPost(c *gin.Context) {
	f, contentType, err := openImage(c)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	if f != nil {
		defer f.Close()
	}

	in := services.CreatePostInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
	}
	p, err := h.svc.Posts.Create(c.Request.Context(), identity(c), in, f, contentType)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) listPosts(c *gin.Context) {
	q := services.ListPostsQuery{Category: c.Query("category")}
	if raw := c.Query("pageNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.resp.fail(c, common.NewValidationError("pageNumber", `"pageNumber" must be a positive number`))
			return
		}
		q.PageNumber = n
	}

	list, err := h.svc.Posts.List(c.Request.Context(), q)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) countPosts(c *gin.Context) {
	n, err := h.svc.Posts.Count(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handlers) getPost(c *gin.Context) {
	p, err := h.svc.Posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updatePost(c *gin.Context) {
	var in services.UpdatePostInput
	if !h.bindJSON(c, &in) {
		return
	}
	p, err := h.svc.Posts.Update(c.Request.Context(), identity(c), c.Param("id"), in)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updatePostImage(c *gin.Context) {
	f, contentType, err := openImage(c)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	if f != nil {
		defer f.Close()
	}

	p, err := h.svc.Posts.UpdateImage(c.Request.Context(), identity(c), c.Param("id"), f, contentType)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) toggleLike(c *gin.Context) {
	p, err := h.svc.Posts.ToggleLike(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type deletedResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (h *handlers) deletePost(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Posts.Delete(c.Request.Context(), identity(c), id); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Message: "post has been deleted", ID: id})
}
