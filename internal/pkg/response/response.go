// Package response defines the standard JSON envelope used by every handler.
package response

import "github.com/gofiber/fiber/v2"

// SuccessBody is the standard success envelope.
type SuccessBody struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// ErrorBody is the standard error envelope.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail carries the message, HTTP status and optional extra details.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details"`
}

// Success writes a 200 success envelope.
func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(SuccessBody{Status: "success", Data: data})
}

// Created writes a 201 success envelope.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{Status: "success", Data: data})
}

// Error writes an error envelope with the given status code.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: "error",
		Error:  ErrorDetail{Message: message, StatusCode: statusCode, Details: details},
	})
}

// BadRequest writes a 400 error envelope.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusBadRequest, nil)
}

// Unauthorized writes a 401 error envelope.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// Forbidden writes a 403 error envelope.
func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusForbidden, nil)
}

// NotFound writes a 404 error envelope.
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusNotFound, nil)
}

// Conflict writes a 409 error envelope.
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusConflict, nil)
}

// Internal writes a 500 error envelope.
func Internal(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusInternalServerError, nil)
}
