package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetExitCodeSuccessIsZero(t *testing.T) {
	assert.Equal(t, ExitCodeSuccess, getExitCode(nil))
}

func TestGetExitCodeAnyFailureIsOne(t *testing.T) {
	assert.Equal(t, ExitCodeError, getExitCode(errors.New("boom")))
}
