package rest

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/gin-gonic/gin"
)

const imageField = "image"

type handlers struct {
	svc  Services
	resp *responder
}

type messageResponse struct {
	Message string `json:"message"`
}

// bindJSON decodes the body. Field rules are enforced by the services.
func (h *handlers) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.resp.fail(c, common.NewValidationError("body", "invalid request body"))
		return false
	}
	return true
}

// openImage returns the uploaded image, or a nil file when the request
// carries none. The caller closes the returned file.
func openImage(c *gin.Context) (multipart.File, string, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", common.NewValidationError(imageField, "invalid multipart form")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	return f, fh.Header.Get("Content-Type"), nil
}
