package finance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-edu/meridian-backoffice/internal/rbac"
	"github.com/meridian-edu/meridian-backoffice/internal/shared"
)

func newTestRouter(t *testing.T, f *fixture) chi.Router {
	t.Helper()
	handler := NewHandler(
		slog.New(slog.DiscardHandler),
		f.orchestrator,
		rbac.Middleware{Policy: rbac.NewPolicy(rbac.DefaultPolicyConfig(nil))},
	)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{}
			sess.SetSubject("1", string(rbac.RoleAdministrator))
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func TestDeletePaymentReturnsOK(t *testing.T) {
	f := newFixture()
	created, err := f.orchestrator.Create(context.Background(), 1, paymentRecord())
	require.NoError(t, err)

	router := newTestRouter(t, f)
	req := httptest.NewRequest(http.MethodDelete, "/payments/"+strconv.FormatInt(created.ID, 10), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(created.ID), body["deleted"])
	assert.Empty(t, f.store.records[KindPayment])
}

func TestDeleteMissingPaymentIsNotFound(t *testing.T) {
	f := newFixture()
	router := newTestRouter(t, f)

	req := httptest.NewRequest(http.MethodDelete, "/payments/99", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
