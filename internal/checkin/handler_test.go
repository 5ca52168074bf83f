package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-webinar/eventdesk/internal/codes"
	"github.com/aura-webinar/eventdesk/internal/forms"
	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/internal/registrations"
)

func TestCheckInEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	formStore := forms.NewInMemory()
	store := registrations.NewInMemory(formStore)
	codeSvc, err := codes.NewService("http://localhost:8080/verify", 0)
	require.NoError(t, err)

	form := &models.Form{Fields: []models.FieldSpec{{Name: "name", Type: models.FieldText}}}
	require.NoError(t, formStore.Create(ctx, form))
	_, err = formStore.Publish(ctx, form.ID)
	require.NoError(t, err)
	sub, err := registrations.NewService(store, formStore, codeSvc, allowAll, nil, nil, nil).
		Submit(ctx, form.ID, map[string]string{"name": "Ada"})
	require.NoError(t, err)

	r := gin.New()
	r.POST("/checkin", NewHandler(NewService(store, codeSvc, allowAll, nil, nil), nil).CheckIn)
	scan := func(code string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkin", strings.NewReader(`{"code":"`+code+`"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	var body struct {
		Data Result `json:"data"`
	}
	w := scan(sub.CodePayload)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, OutcomeCheckedIn, body.Data.Status)

	w = scan(sub.CodePayload)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, OutcomeAlreadyCheckedIn, body.Data.Status)

	assert.Equal(t, http.StatusBadRequest, scan("not a code").Code)

	other, err := codeSvc.Mint()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, scan(codeSvc.Encode(other)).Code)
}

type failingStore struct{ err error }

func (f failingStore) CheckIn(context.Context, string, time.Time) (*models.Registration, bool, error) {
	return nil, false, f.err
}

func TestCheckInEndpointLogsStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	codeSvc, err := codes.NewService("http://localhost:8080/verify", 0)
	require.NoError(t, err)
	token, err := codeSvc.Mint()
	require.NoError(t, err)

	core, logs := observer.New(zap.ErrorLevel)
	svc := NewService(failingStore{err: errors.New("deadlock detected")}, codeSvc, allowAll, nil, nil)
	r := gin.New()
	r.POST("/checkin", NewHandler(svc, zap.New(core)).CheckIn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkin", strings.NewReader(`{"code":"`+codeSvc.Encode(token)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entries := logs.FilterMessage("check-in failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "deadlock detected", entries[0].ContextMap()["error"])

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/checkin", strings.NewReader(`{"code":"not a code"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, logs.Len())
}
