package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/dto"
	"github.com/prohmpiriya/event-ledger/pkg/middleware"
	"github.com/prohmpiriya/event-ledger/pkg/response"
)

// MockLedgerService is a mock implementation of LedgerService for testing
type MockLedgerService struct {
	CreateEventFunc    func(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error)
	ReserveFunc        func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error)
	GetEventFunc       func(ctx context.Context, id uint64) (*dto.EventResponse, error)
	ListEventsFunc     func(ctx context.Context, account domain.Account) (*dto.EventListResponse, error)
	EventCountFunc     func(ctx context.Context) (*dto.EventCountResponse, error)
	GetReservationFunc func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReservationResponse, error)
}

func (m *MockLedgerService) CreateEvent(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
	if m.CreateEventFunc != nil {
		return m.CreateEventFunc(ctx, caller, req)
	}
	return nil, nil
}

func (m *MockLedgerService) Reserve(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, account, eventID)
	}
	return nil, nil
}

func (m *MockLedgerService) GetEvent(ctx context.Context, id uint64) (*dto.EventResponse, error) {
	if m.GetEventFunc != nil {
		return m.GetEventFunc(ctx, id)
	}
	return nil, domain.ErrInvalidEventID
}

func (m *MockLedgerService) ListEvents(ctx context.Context, account domain.Account) (*dto.EventListResponse, error) {
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, account)
	}
	return &dto.EventListResponse{}, nil
}

func (m *MockLedgerService) EventCount(ctx context.Context) (*dto.EventCountResponse, error) {
	if m.EventCountFunc != nil {
		return m.EventCountFunc(ctx)
	}
	return &dto.EventCountResponse{}, nil
}

func (m *MockLedgerService) GetReservation(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReservationResponse, error) {
	if m.GetReservationFunc != nil {
		return m.GetReservationFunc(ctx, account, eventID)
	}
	return &dto.ReservationResponse{}, nil
}

// setupTestRouter wires the handler the way main does, with an
// optional fixed caller identity.
func setupTestRouter(svc *MockLedgerService, account string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	if account != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyAccount, account)
			c.Next()
		})
	}

	h := NewLedgerHandler(svc)
	events := router.Group("/api/v1/events")
	{
		events.POST("", h.CreateEvent)
		events.GET("", h.ListEvents)
		events.GET("/count", h.EventCount)
		events.GET("/:id", h.GetEvent)
		events.POST("/:id/reserve", h.Reserve)
		events.GET("/:id/reservation", h.GetReservation)
	}
	return router
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) *response.Response {
	t.Helper()
	var envelope response.Response
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &envelope
}

func TestLedgerHandler_CreateEvent(t *testing.T) {
	tests := []struct {
		name           string
		account        string
		body           string
		mockFunc       func(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "successful creation",
			account: "0xOwner",
			body:    `{"name":"Launch Party","capacity":100}`,
			mockFunc: func(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
				return &dto.CreateEventResponse{
					CommitID: "commit-1",
					Event:    &dto.EventResponse{ID: 0, Name: req.Name, Capacity: req.Capacity, Remaining: req.Capacity},
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "no caller identity",
			account:        "",
			body:           `{"name":"Launch Party","capacity":100}`,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHENTICATED",
		},
		{
			name:           "malformed body",
			account:        "0xOwner",
			body:           `{"name":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:    "non-owner rejected",
			account: "0xAlice",
			body:    `{"name":"Launch Party","capacity":100}`,
			mockFunc: func(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
				return nil, domain.ErrUnauthorized
			},
			expectedStatus: http.StatusForbidden,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:    "zero capacity",
			account: "0xOwner",
			body:    `{"name":"Launch Party","capacity":0}`,
			mockFunc: func(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
				return nil, domain.ErrInvalidCapacity
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_CAPACITY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(&MockLedgerService{CreateEventFunc: tt.mockFunc}, tt.account)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if tt.expectedCode != "" {
				envelope := decodeEnvelope(t, w.Body)
				if envelope.Error == nil || envelope.Error.Code != tt.expectedCode {
					t.Errorf("error = %+v, want code %s", envelope.Error, tt.expectedCode)
				}
			}
		})
	}
}

func TestLedgerHandler_Reserve(t *testing.T) {
	tests := []struct {
		name           string
		account        string
		path           string
		mockFunc       func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "successful reservation",
			account: "0xAlice",
			path:    "/api/v1/events/3/reserve",
			mockFunc: func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error) {
				return &dto.ReserveResponse{
					CommitID:    "commit-2",
					EventID:     eventID,
					Account:     account,
					Registered:  1,
					CommittedAt: time.Now(),
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "no caller identity",
			account:        "",
			path:           "/api/v1/events/3/reserve",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHENTICATED",
		},
		{
			name:           "non-numeric event id",
			account:        "0xAlice",
			path:           "/api/v1/events/abc/reserve",
			expectedStatus: http.StatusNotFound,
			expectedCode:   "INVALID_EVENT_ID",
		},
		{
			name:    "unknown event",
			account: "0xAlice",
			path:    "/api/v1/events/99/reserve",
			mockFunc: func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error) {
				return nil, domain.ErrInvalidEventID
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "INVALID_EVENT_ID",
		},
		{
			name:    "duplicate reservation",
			account: "0xAlice",
			path:    "/api/v1/events/3/reserve",
			mockFunc: func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error) {
				return nil, domain.ErrAlreadyReserved
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "ALREADY_RESERVED",
		},
		{
			name:    "event full",
			account: "0xAlice",
			path:    "/api/v1/events/3/reserve",
			mockFunc: func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error) {
				return nil, domain.ErrEventFull
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "EVENT_FULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(&MockLedgerService{ReserveFunc: tt.mockFunc}, tt.account)

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if tt.expectedCode != "" {
				envelope := decodeEnvelope(t, w.Body)
				if envelope.Error == nil || envelope.Error.Code != tt.expectedCode {
					t.Errorf("error = %+v, want code %s", envelope.Error, tt.expectedCode)
				}
			}
		})
	}
}

func TestLedgerHandler_GetEvent(t *testing.T) {
	svc := &MockLedgerService{
		GetEventFunc: func(ctx context.Context, id uint64) (*dto.EventResponse, error) {
			if id != 1 {
				return nil, domain.ErrInvalidEventID
			}
			return &dto.EventResponse{ID: 1, Name: "Solidity Summit", Capacity: 50, Registered: 12, Remaining: 38}, nil
		},
	}
	router := setupTestRouter(svc, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/42", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestLedgerHandler_EventCountAndList(t *testing.T) {
	svc := &MockLedgerService{
		EventCountFunc: func(ctx context.Context) (*dto.EventCountResponse, error) {
			return &dto.EventCountResponse{Count: 2}, nil
		},
		ListEventsFunc: func(ctx context.Context, account domain.Account) (*dto.EventListResponse, error) {
			return &dto.EventListResponse{
				Count: 2,
				Events: []*dto.EventListItem{
					{EventResponse: dto.EventResponse{ID: 0, Name: "Web3 Conf Paris", Capacity: 100}},
					{EventResponse: dto.EventResponse{ID: 1, Name: "Solidity Summit", Capacity: 50}, ReservedByMe: account == "0xAlice"},
				},
			}, nil
		},
	}
	router := setupTestRouter(svc, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/count", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("count status = %d, want %d", w.Code, http.StatusOK)
	}
	envelope := decodeEnvelope(t, w.Body)
	data, _ := json.Marshal(envelope.Data)
	var count dto.EventCountResponse
	if err := json.Unmarshal(data, &count); err != nil {
		t.Fatalf("failed to decode count: %v", err)
	}
	if count.Count != 2 {
		t.Errorf("count = %d, want 2", count.Count)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestLedgerHandler_GetReservation(t *testing.T) {
	svc := &MockLedgerService{
		GetReservationFunc: func(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReservationResponse, error) {
			return &dto.ReservationResponse{
				EventID:  eventID,
				Account:  account,
				Reserved: account == "0xAlice",
			}, nil
		},
	}

	// Explicit account query parameter.
	router := setupTestRouter(svc, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/1/reservation?account=0xAlice", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	// No account at all.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/1/reservation", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// Falls back to the authenticated caller.
	router = setupTestRouter(svc, "0xBob")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/1/reservation", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
