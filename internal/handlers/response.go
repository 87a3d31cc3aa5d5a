package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
)

type APIError struct {
  Message     string	`json:"message"`
  Code	      string	`json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error	      APIError	`json:"error"`
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

// RespondInternal keeps backend failure detail out of the response body;
// the caller logs the real error.
func RespondInternal(c *gin.Context, code string) {
  c.JSON(http.StatusInternalServerError, ErrorEnvelope{
    Error: APIError{
      Message: "internal error",
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}
