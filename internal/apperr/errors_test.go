package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockError(t *testing.T) {
	err := &InsufficientStockError{ProductID: "p1", Requested: 1, Available: 0, ReservedByOthers: 5}

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.True(t, errors.Is(fmt.Errorf("add item: %w", err), ErrInsufficientStock))
	assert.Equal(t, 1, err.Shortfall())
	assert.Contains(t, err.Error(), "only 0 available")
	assert.Contains(t, err.Error(), "5 reserved in other carts")
}

func TestInsufficientStockError_NegativeAvailabilityClamped(t *testing.T) {
	err := &InsufficientStockError{ProductID: "p1", Requested: 2, Available: -3, ReservedByOthers: 8}

	assert.Equal(t, 2, err.Shortfall())
	assert.Contains(t, err.Error(), "only 0 available")
}

func TestHelpersWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, NotFound("order", "x"), ErrNotFound)
	assert.ErrorIs(t, Invalid("quantity %d", -1), ErrInvalidArgument)
	assert.ErrorIs(t, Unavailable("Mug"), ErrProductUnavailable)
	assert.ErrorIs(t, Transition("shipped", "cancelled"), ErrInvalidStateTransition)
}
