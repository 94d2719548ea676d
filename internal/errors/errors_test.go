package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{ErrCodePackNotFound, CategoryPack, SeverityError},
		{ErrCodeStorageFailure, CategoryStorage, SeverityFatal},
		{ErrCodeVectorFailure, CategoryStorage, SeverityWarning},
		{ErrCodeInvalidQuery, CategoryValidation, SeverityError},
		{ErrCodeInternal, CategoryInternal, SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodePackNotFound, "pack test_pack not found", nil)
	assert.Equal(t, "[ERR_201_PACK_NOT_FOUND] pack test_pack not found", err.Error())
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(ErrCodeStorageFailure, cause)
	require.NotNil(t, err)

	assert.Equal(t, "disk on fire", err.Message)
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(ErrCodeStorageFailure, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := Newf(ErrCodePackNotFound, "pack %s not found", "test_pack")
	target := New(ErrCodePackNotFound, "", nil)

	assert.ErrorIs(t, err, target)
	assert.NotErrorIs(t, err, New(ErrCodeManifestInvalid, "", nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := ManifestError("missing id", nil).
		WithDetail("path", "packs/broken/manifest.yaml").
		WithSuggestion("add an 'id' field to the manifest")

	assert.Equal(t, "packs/broken/manifest.yaml", err.Details["path"])
	assert.Equal(t, "add an 'id' field to the manifest", err.Suggestion)
	assert.Equal(t, CategoryPack, err.Category)
}
