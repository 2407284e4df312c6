package httperr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/httperr"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("debit: %w", apperr.ErrInsufficientCredits), http.StatusPaymentRequired},
		{apperr.ErrInvalidTransition, http.StatusConflict},
		{apperr.ErrStaleState, http.StatusConflict},
		{apperr.ErrRevisionAlreadyPending, http.StatusConflict},
		{apperr.ErrAlreadyExists, http.StatusConflict},
		{apperr.Missing("observation"), http.StatusUnprocessableEntity},
		{apperr.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrForbidden, http.StatusForbidden},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := httperr.Status(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/x/adjustments", nil)

	t.Run("FieldError", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httperr.Write(rec, req, apperr.Missing("observation"))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "missing_required_field", body["code"])
		assert.Equal(t, "observation", body["field"])
	})

	t.Run("InternalIsHidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httperr.Write(rec, req, errors.New("pq: password authentication failed"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
	})
}
