package clierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, New(InternalError, "boom").ExitCode())
	assert.Equal(t, 1, New(RootNotFound, "missing").ExitCode())
}

func TestNewfAndDetails(t *testing.T) {
	err := Newf(InvalidMask, "unknown flag %q", "bogus").
		WithDetails(map[string]any{"flag": "bogus"})

	assert.Equal(t, `unknown flag "bogus"`, err.Error())
	assert.Equal(t, InvalidMask, err.Code)
	assert.Equal(t, "bogus", err.Details["flag"])
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("watch: %w", New(WatcherInert, "inert"))
	assert.Equal(t, WatcherInert, As(wrapped).Code)

	plain := As(errors.New("disk on fire"))
	assert.Equal(t, InternalError, plain.Code)
	assert.Equal(t, "disk on fire", plain.Message)
}

func TestSilentError(t *testing.T) {
	assert.Equal(t, "exit 3", (&SilentError{Code: 3}).Error())
}
