package apperr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
)

func TestKind_OnlyTransientIsRetriable(t *testing.T) {
	assert.True(t, apperr.KindTransient.Retriable())
	assert.False(t, apperr.KindFatal.Retriable())
	assert.False(t, apperr.KindPolicyViolation.Retriable())
}

func TestError_MessageIncludesStageWhenPresent(t *testing.T) {
	err := apperr.New(apperr.KindEngineFailed, "engines.b", errors.New("boom"))
	assert.Equal(t, "ENGINE_FAILED[engines.b]: boom", err.Error())
}

func TestError_MessageOmitsStageWhenEmpty(t *testing.T) {
	err := apperr.New(apperr.KindFatal, "", errors.New("boom"))
	assert.Equal(t, "FATAL: boom", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := apperr.New(apperr.KindTransient, "store", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestWrap_PassesThroughAnExistingClassifiedError(t *testing.T) {
	original := apperr.New(apperr.KindDuplicate, "webhook", errors.New("dup"))
	wrapped := apperr.Wrap(apperr.KindTransient, "other.stage", original)
	assert.Same(t, original, wrapped)
}

func TestWrap_ClassifiesAPlainError(t *testing.T) {
	cause := errors.New("boom")
	wrapped := apperr.Wrap(apperr.KindEnrichmentFailed, "signalproc", cause)
	assert.Equal(t, apperr.KindEnrichmentFailed, wrapped.Kind)
	assert.Same(t, cause, wrapped.Cause)
}

func TestKindOf_DefaultsToFatalForUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, apperr.KindFatal, apperr.KindOf(errors.New("boom")))
}

func TestKindOf_ExtractsKindFromClassifiedError(t *testing.T) {
	err := apperr.New(apperr.KindRiskSuppressed, "risk", errors.New("blocked"))
	assert.Equal(t, apperr.KindRiskSuppressed, apperr.KindOf(err))
}
