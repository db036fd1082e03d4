package handlers

import "github.com/gin-gonic/gin"

// Stable machine-readable error codes of the read API.
const (
	CodeInvalidLimit  = "INVALID_LIMIT"
	CodeInvalidID     = "INVALID_ID"
	CodeNotFound      = "NOT_FOUND"
	CodeInternalError = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, errorResponse{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}
