package defense_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	defense "github.com/jassus213/go-defense"
)

func TestBackendError_MatchesByKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("wrapped: %w", defense.NewBackendError(defense.KindUnavailable, "get", "k", cause))

	assert.True(t, defense.IsBackendError(err))
	assert.ErrorIs(t, err, defense.ErrBackendUnavailable)
	assert.NotErrorIs(t, err, defense.ErrBackendProtocol)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `wrapped: defense: backend unavailable during get of key "k": connection refused`, err.Error())
}

func TestIsBackendError_RejectsOtherErrors(t *testing.T) {
	assert.False(t, defense.IsBackendError(nil))
	assert.False(t, defense.IsBackendError(errors.New("boom")))
	assert.False(t, defense.IsBackendError(defense.ErrInvalidStep))
}

func TestValidateStep(t *testing.T) {
	assert.ErrorIs(t, defense.ValidateStep(0), defense.ErrInvalidStep)
	assert.ErrorIs(t, defense.ValidateStep(-3), defense.ErrInvalidStep)
	assert.NoError(t, defense.ValidateStep(1))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, defense.KindProtocol, defense.KindOf(defense.NewBackendError(defense.KindProtocol, "get", "k", nil)))
	assert.Equal(t, defense.Kind(""), defense.KindOf(errors.New("boom")))
}
