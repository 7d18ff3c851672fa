package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	items  *mockItems
	ledger *mockLedger
	orders *mockOrders
	users  *mockUsers
	backup *mockBackup
	audit  *mockAudit
}

func newTestEnv(t *testing.T, checks map[string]HealthCheck) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		items:  &mockItems{},
		ledger: &mockLedger{},
		orders: &mockOrders{},
		users:  &mockUsers{},
		backup: &mockBackup{},
		audit:  &mockAudit{},
	}
	env.users.On("Role", mock.Anything, "boss").Return(models.RoleAdmin, nil).Maybe()
	env.users.On("Role", mock.Anything, "helper").Return(models.RoleVolunteer, nil).Maybe()
	env.users.On("Role", mock.Anything, "jdoe").Return(models.RoleUser, nil).Maybe()
	env.users.On("Role", mock.Anything, "gone").Return(models.RoleDisabled, nil).Maybe()

	h := NewHandler(Services{
		Items:  env.items,
		Ledger: env.ledger,
		Orders: env.orders,
		Users:  env.users,
		Backup: env.backup,
		Audit:  env.audit,
	}, "", checks)

	env.router = gin.New()
	h.SetupRoutes(env.router)
	return env
}

func (e *testEnv) do(method, path, onyen string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if onyen != "" {
		req.Header.Set("X-Remote-User", onyen)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})

	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env = newTestEnv(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	w = env.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
}

func TestAuthGates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.On("ListTransactions", mock.Anything).Return([]models.Transaction{}, nil)
	env.orders.On("ListActiveOrders", mock.Anything).Return([]models.Transaction{}, nil)

	tests := []struct {
		name   string
		method string
		path   string
		onyen  string
		want   int
	}{
		{"anonymous", http.MethodGet, "/api/v1/orders/mine", "", http.StatusUnauthorized},
		{"disabled", http.MethodGet, "/api/v1/orders/mine", "gone", http.StatusForbidden},
		{"user on staff route", http.MethodGet, "/api/v1/orders", "jdoe", http.StatusForbidden},
		{"volunteer on staff route", http.MethodGet, "/api/v1/orders", "helper", http.StatusOK},
		{"volunteer on admin route", http.MethodGet, "/api/v1/transactions", "helper", http.StatusForbidden},
		{"admin on admin route", http.MethodGet, "/api/v1/transactions", "boss", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.path, tt.onyen, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.items.On("DeleteItem", mock.Anything, "bad").Return(apperr.BadRequest("item bad could not be retrieved"))
	env.items.On("DeleteItem", mock.Anything, "used").Return(apperr.Referential("A problem occurred when deleting the item: back up and delete the dependent records first", errors.New("fk")))
	env.items.On("DeleteItem", mock.Anything, "boom").Return(apperr.Internal("A problem occurred when deleting the item", errors.New("conn reset")))
	env.users.On("DeleteUser", mock.Anything, "ORDER").Return(service.ErrReservedUser)

	w := env.do(http.MethodDelete, "/api/v1/items/bad", "boss", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "item bad could not be retrieved", errorBody(t, w))

	w = env.do(http.MethodDelete, "/api/v1/items/used", "boss", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, errorBody(t, w), "back up and delete")

	w = env.do(http.MethodDelete, "/api/v1/items/boom", "boss", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, errorBody(t, w), "conn reset")

	w = env.do(http.MethodDelete, "/api/v1/users/ORDER", "boss", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateOrderUsesCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(r *service.CreateOrderRequest) bool {
		return r.Onyen == "jdoe" && r.IdempotencyKey == "k1" && len(r.Items) == 1
	})).Return(&service.CreateOrderResponse{OrderID: "o1"}, nil).Once()
	env.orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(r *service.CreateOrderRequest) bool {
		return r.Onyen == "asmith"
	})).Return(&service.CreateOrderResponse{OrderID: "o2", Replayed: true}, nil).Once()

	body := map[string]interface{}{
		"onyen": "someone-else",
		"items": []map[string]interface{}{{"item_id": "a", "quantity": 2}},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"onyen":"someone-else","items":[{"item_id":"a","quantity":2}]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Remote-User", "jdoe")
	req.Header.Set("Idempotency-Key", "k1")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	body["onyen"] = "asmith"
	w = env.do(http.MethodPost, "/api/v1/orders", "helper", body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/orders", "jdoe", map[string]interface{}{"items": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.orders.AssertExpectations(t)
}

func TestOrderTransitionsRecordAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orders.On("CompleteOrder", mock.Anything, int64(7), "boss").
		Return(&models.Transaction{ID: 7, Status: models.StatusComplete, StaffOnyen: "boss"}, nil).Once()
	env.orders.On("ExecuteOrder", mock.Anything, int64(8)).
		Return(nil, apperr.BadRequest("order 8 is complete and cannot be marked inUse")).Once()

	w := env.do(http.MethodPost, "/api/v1/orders/7/complete", "boss", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StatusComplete, got.Status)

	w = env.do(http.MethodPost, "/api/v1/orders/8/execute", "helper", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/orders/x/execute", "helper", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/orders/7/cancel", "helper", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.orders.AssertExpectations(t)
}

func TestEntryRecordsStaff(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.On("RemoveItems", mock.Anything, "a", 2, "jdoe", "helper").
		Return(&models.Transaction{ID: 1, Count: -2}, nil).Once()

	w := env.do(http.MethodPost, "/api/v1/entry/remove", "helper", map[string]interface{}{
		"item_id": "a", "quantity": 2, "onyen": "jdoe",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/api/v1/entry/add", "helper", map[string]interface{}{"item_id": "a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.ledger.AssertExpectations(t)
}

func TestListItemsParsesFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	env.items.On("ListItems", mock.Anything, models.ItemFilter{
		Category: models.CategoryPant,
		Colors:   []string{"tan", "navy"},
		Size:     models.PantSize{Waist: 32, Length: 30},
	}).Return([]models.Item{{ID: "a"}}, nil).Once()

	w := env.do(http.MethodGet, "/api/v1/items?category=pants&color=tan&color=navy&waist=32&length=30", "jdoe", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/items?category=hats", "jdoe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.items.AssertExpectations(t)
}

func TestImportItemsMultipart(t *testing.T) {
	env := newTestEnv(t, nil)
	csv := "Oxford shirt,shirt,M,,Gap,white,3,L\n"
	env.items.On("ImportCSV", mock.Anything, []byte(csv), service.ImportOptions{HasHeader: false, WithIDs: true}).
		Return(1, nil).Once()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "items.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte(csv))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/import?with_ids=true", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Remote-User", "boss")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"imported":1}`, w.Body.String())
	env.items.AssertExpectations(t)
}

func TestBackupDownload(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backup.On("Export", mock.Anything, mock.Anything, "users").Return("onyen,role\nboss,admin\n", nil).Once()
	env.backup.On("FileName", "users").Return("users-2024-03-09.csv").Once()
	env.backup.On("Export", mock.Anything, mock.Anything, "items").
		Return("", apperr.BadRequest(`"items" is not a table that can be backed up`)).Once()

	w := env.do(http.MethodGet, "/api/v1/backup/users", "boss", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="users-2024-03-09.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "onyen,role\nboss,admin\n", w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/backup/items", "boss", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.backup.AssertExpectations(t)
}

func TestBackupStreamsRows(t *testing.T) {
	t.Run("empty table still downloads", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.backup.On("Export", mock.Anything, mock.Anything, "transactions").Return("", nil).Once()
		env.backup.On("FileName", "transactions").Return("transactions-2024-03-09.csv").Once()

		w := env.do(http.MethodGet, "/api/v1/backup/transactions", "boss", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="transactions-2024-03-09.csv"`, w.Header().Get("Content-Disposition"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("failure after first rows truncates the file", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.backup.On("Export", mock.Anything, mock.Anything, "users").
			Return("onyen,role\n", apperr.Internal("A problem occurred when backing up users", errors.New("conn reset"))).Once()
		env.backup.On("FileName", "users").Return("users-2024-03-09.csv").Once()

		w := env.do(http.MethodGet, "/api/v1/backup/users", "boss", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "onyen,role\n", w.Body.String())
	})
}

func TestEditUserTakesOnyenFromPath(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.On("EditUser", mock.Anything, service.UserInput{Onyen: "jdoe", Role: "volunteer"}).
		Return(&models.User{Onyen: "jdoe", Role: models.RoleVolunteer}, nil).Once()

	w := env.do(http.MethodPut, "/api/v1/users/jdoe", "boss", map[string]string{"onyen": "other", "role": "volunteer"})
	assert.Equal(t, http.StatusOK, w.Code)
	env.users.AssertExpectations(t)
}

func TestListAuditPassesLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.audit.On("ListAudit", mock.Anything, "jdoe", 20).Return([]models.AuditEntry{{EventID: "e1"}}, nil).Once()

	w := env.do(http.MethodGet, "/api/v1/audit?onyen=jdoe&limit=20", "boss", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "e1")
	env.audit.AssertExpectations(t)
}
