package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %T: %v", err, err)
	require.Equal(t, code, de.Code)
	return de
}
