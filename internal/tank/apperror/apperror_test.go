package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("set status: %w", NotFound("process %s not found", "p1"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "set status: process p1 not found", err.Error())
}

func TestFrom(t *testing.T) {
	v := From(fmt.Errorf("wrap: %w", Validation("progress must be between 0 and 100")))
	assert.Equal(t, CodeValidation, v.Code)
	assert.Equal(t, http.StatusBadRequest, v.HTTPStatus)

	p := From(errors.New("disk full"))
	assert.Equal(t, CodePersistence, p.Code)
	assert.Equal(t, http.StatusInternalServerError, p.HTTPStatus)
	assert.Equal(t, "internal error: disk full", p.Error())
}
