// utils/http.go - Fiber response helpers
package utils

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// JSONSuccess sends a success envelope. Maps are merged into the envelope,
// anything else goes under "data".
func JSONSuccess(c *fiber.Ctx, status int, data interface{}) error {
	response := fiber.Map{
		"success": true,
	}

	if dataMap, ok := data.(fiber.Map); ok {
		for k, v := range dataMap {
			response[k] = v
		}
	} else if data != nil {
		response["data"] = data
	}

	return c.Status(status).JSON(response)
}

// JSONError sends an error envelope with a status derived from err.
func JSONError(c *fiber.Ctx, err error) error {
	status := StatusCode(err)
	body := fiber.Map{
		"success": false,
		"error":   err.Error(),
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	if status == http.StatusInternalServerError {
		body["error"] = "Internal server error"
	}

	return c.Status(status).JSON(body)
}

// ParseJSON decodes the request body, reporting malformed input as a
// validation error.
func ParseJSON(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return NewValidationError("body", "Invalid request body")
	}
	return nil
}
