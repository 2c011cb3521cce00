package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagi-labs/operator-console/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondCollaboratorError maps a collaborator failure onto the envelope,
// defaulting to 502 when the upstream never answered.
func RespondCollaboratorError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		RespondError(c, status, ae.Code, ae)
		return
	}
	RespondError(c, http.StatusBadGateway, "collaborator_error", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
