package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
)

func TestWriteListIncludesCount(t *testing.T) {
	w := httptest.NewRecorder()
	WriteList[string](w, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data  []string `json:"data"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotNil(t, body.Data)
	assert.Zero(t, body.Count)
}

func TestWriteErrorInsufficientStockKeepsDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough Arduino Uno in IoT Lab").
		WithDetails(map[string]any{"requested": 3, "usable": 1})
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusConflict, w.Code)
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Error.Code)
	assert.Equal(t, "not enough Arduino Uno in IoT Lab", body.Error.Message)
	assert.Equal(t, map[string]any{"requested": float64(3), "usable": float64(1)}, body.Error.Details)
}

func TestWriteErrorHidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("pq: relation lab_inventory does not exist"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.Nil(t, body.Error.Details)
}

func TestWriteErrorNotFoundKeepsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found"))

	require.Equal(t, http.StatusNotFound, w.Code)
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "transaction not found", body.Error.Message)
}
