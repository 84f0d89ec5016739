package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"validation", Validationf("bad params"), CategoryValidation},
		{"policy", Policyf("blocked"), CategoryPolicy},
		{"conflict", Conflictf("slot held"), CategoryConflict},
		{"not found", NotFoundf("missing"), CategoryNotFound},
		{"state", Statef("wrong status"), CategoryState},
		{"plain error", stderrors.New("boom"), CategoryInternal},
		{"wrapped", fmt.Errorf("submit: %w", Policyf("blocked")), CategoryPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validationf("x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Statef("x")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Policyf("x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflictf("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFoundf("x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("boom")))
}

func TestIs(t *testing.T) {
	err := Policyf("blocked")
	assert.True(t, Is(err, CategoryPolicy))
	assert.False(t, Is(err, CategoryValidation))
	assert.False(t, Is(nil, CategoryPolicy))
}

func TestErrorMessage(t *testing.T) {
	err := Validationf("invalid tier filter: %s", "hot")
	assert.Equal(t, "invalid tier filter: hot", err.Error())
}
