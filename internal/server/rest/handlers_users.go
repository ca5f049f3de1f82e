package rest

import (
	"net/http"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (h *handlers) listUsers(c *gin.Context) {
	list, err := h.svc.Users.List(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) countUsers(c *gin.Context) {
	n, err := h.svc.Users.Count(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handlers) getUserProfile(c *gin.Context) {
	p, err := h.svc.Users.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updateUserProfile(c *gin.Context) {
	var in services.UpdateProfileInput
	if !h.bindJSON(c, &in) {
		return
	}
	u, err := h.svc.Users.UpdateProfile(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type profilePhotoResponse struct {
	Message      string       `json:"message"`
	ProfilePhoto models.Image `json:"profilePhoto"`
}

func (h *handlers) uploadProfilePhoto(c *gin.Context) {
	f, contentType, err := openImage(c)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	if f == nil {
		h.resp.fail(c, common.NewValidationError(imageField, "no file provided"))
		return
	}
	defer f.Close()

	img, err := h.svc.Users.UploadProfilePhoto(c.Request.Context(), identity(c), f, contentType)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profilePhotoResponse{Message: "your profile photo uploaded successfully", ProfilePhoto: img})
}

func (h *handlers) deleteUser(c *gin.Context) {
	if err := h.svc.Users.Delete(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "the profile has been deleted"})
}
