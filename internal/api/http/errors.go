package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/uartd/internal/domain/uart"
)

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, uart.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, uart.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		// the driver could not open or configure the device
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	body := gin.H{"error": err.Error()}
	var uerr *uart.UnavailableError
	if errors.As(err, &uerr) {
		body["reason"] = uerr.Reason()
	}
	c.JSON(statusFor(err), body)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
