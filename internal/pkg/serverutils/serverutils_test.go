package serverutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Score int    `validate:"min=1,max=5"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sample{Name: "a", Score: 3}))

	err := ValidateRequest(sample{Score: 9})
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusBadRequest, fe.Code)
	assert.Contains(t, fe.Message, "name failed on 'required'")
	assert.Contains(t, fe.Message, "score failed on 'max'")
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "nope") })
	app.Get("/boom", func(c *fiber.Ctx) error { return assert.AnError })

	tests := []struct {
		path string
		code int
		msg  string
	}{
		{"/bad", 400, "nope"},
		{"/boom", 500, assert.AnError.Error()},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tt.code, resp.StatusCode)

		var body BaseResponse[any]
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, tt.code, body.Code)
		assert.Equal(t, tt.msg, body.Message)
	}
}
