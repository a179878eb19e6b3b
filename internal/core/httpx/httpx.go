// Package httpx carries the shared HTTP response envelope. Every service
// responds with {success, message, data?} so the gateway can relay bodies
// unchanged.
package httpx

import "github.com/gin-gonic/gin"

// Response is the wire envelope for all service responses.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK writes a success envelope with the given status (2xx).
func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope and aborts the handler chain, so gateway
// middlewares can short-circuit without forwarding upstream.
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}
