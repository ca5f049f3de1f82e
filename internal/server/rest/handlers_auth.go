package rest

import (
	"net/http"

	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (h *handlers) register(c *gin.Context) {
	var in services.RegisterInput
	if !h.bindJSON(c, &in) {
		return
	}
	if _, err := h.svc.Identity.Register(c.Request.Context(), in); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, messageResponse{Message: "we sent you an email, please verify your email address"})
}

func (h *handlers) login(c *gin.Context) {
	var in services.LoginInput
	if !h.bindJSON(c, &in) {
		return
	}
	res, err := h.svc.Identity.Login(c.Request.Context(), in)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) verify(c *gin.Context) {
	if err := h.svc.Identity.Verify(c.Request.Context(), c.Param("userId"), c.Param("token")); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "your account verified"})
}

type resetLinkRequest struct {
	Email string `json:"email"`
}

func (h *handlers) sendResetLink(c *gin.Context) {
	var in resetLinkRequest
	if !h.bindJSON(c, &in) {
		return
	}
	if err := h.svc.Identity.RequestPasswordReset(c.Request.Context(), in.Email); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password reset link sent to your email, please check your inbox"})
}

func (h *handlers) checkResetLink(c *gin.Context) {
	if err := h.svc.Identity.CheckResetLink(c.Request.Context(), c.Param("userId"), c.Param("token")); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "valid url"})
}

type newPasswordRequest struct {
	Password string `json:"password"`
}

func (h *handlers) resetPassword(c *gin.Context) {
	var in newPasswordRequest
	if !h.bindJSON(c, &in) {
		return
	}
	if err := h.svc.Identity.ResetPassword(c.Request.Context(), c.Param("userId"), c.Param("token"), in.Password); err != nil {
		h.resp.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password reset successfully, please log in"})
}
