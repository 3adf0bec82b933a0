package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/shared"
)

type bindTarget struct {
	Name   string          `json:"name" validate:"required,max=10"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Method string          `json:"method" validate:"oneof=cash upi bank"`
}

func TestBindValidatesDecimalAndEnums(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","amount":"0","method":"card"}`))
	var target bindTarget
	err := Bind(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)

	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "must be greater than 0", verr.Fields["amount"])
	assert.Contains(t, verr.Fields["method"], "must be one of")
}

func TestBindAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"rent","amount":"12.50","method":"upi"}`))
	var target bindTarget
	require.NoError(t, Bind(req, &target))
	assert.True(t, target.Amount.Equal(decimal.RequireFromString("12.5")))
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","surprise":1}`))
	var target bindTarget
	require.ErrorIs(t, DecodeJSON(req, &target), shared.ErrValidation)
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("catalog: product %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("stock: %w", shared.ErrConflict), http.StatusConflict},
		{fmt.Errorf("line 1: %w", shared.ErrUnprocessable), http.StatusUnprocessableEntity},
		{shared.NewValidationError("items", "required"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, nil, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
	}
}
