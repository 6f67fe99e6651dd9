package responses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, map[string]any{"hello": "world"}, envelope.Data)
}

func TestWriteErrorMapsCodeToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found"), http.StatusNotFound, "NOT_FOUND"},
		{pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock"), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{pkgerrors.New(pkgerrors.CodeCrossVendor, "order mixes vendors"), http.StatusUnprocessableEntity, "CROSS_VENDOR"},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "illegal transition"), http.StatusUnprocessableEntity, "STATE_CONFLICT"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, tc.err)

		assert.Equal(t, tc.status, rec.Code)
		envelope := decodeError(t, rec)
		assert.Equal(t, tc.code, envelope.Error.Code)
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	internal := pkgerrors.New(pkgerrors.CodeInternal, "db exploded").
		WithDetails(map[string]any{"dsn": "postgres://secret"})
	WriteError(context.Background(), nil, rec, internal)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeError(t, rec)
	assert.Equal(t, "internal server error", envelope.Error.Message)
	assert.Nil(t, envelope.Error.Details)
}

func TestWriteErrorKeepsAllowedDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	shortage := pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"requested": 3, "available": 1})
	WriteError(context.Background(), nil, rec, shortage)

	envelope := decodeError(t, rec)
	require.NotNil(t, envelope.Error.Details)
}

func TestWriteErrorWrapsUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", envelope.Error.Code)
}
