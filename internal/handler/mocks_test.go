package handler

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/chatstealth/server-go/internal/database"
	"github.com/chatstealth/server-go/internal/hub"
	"github.com/chatstealth/server-go/internal/model"
	"github.com/chatstealth/server-go/internal/payments"
	"github.com/chatstealth/server-go/internal/repository"
	"github.com/chatstealth/server-go/internal/service"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindActiveByCode(ctx context.Context, code string) (*model.Session, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Upgrade(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) ListExpired(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) ListUnexpiredBySession(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) DeleteExpired(ctx context.Context) ([]model.ExpiredMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExpiredMessage), args.Error(1)
}

func (m *mockMessageRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageRepo) WithTx(tx *sqlx.Tx) repository.MessageRepository {
	return m
}

type mockHub struct {
	mock.Mock
}

func (m *mockHub) Publish(ctx context.Context, sessionID string, event hub.Event, excludeSender string) error {
	args := m.Called(ctx, sessionID, event, excludeSender)
	return args.Error(0)
}

func (m *mockHub) Upgrade(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockHub) Destroy(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type mockCheckoutClient struct {
	mock.Mock
}

func (m *mockCheckoutClient) CreateCheckout(ctx context.Context, params payments.CreateCheckoutParams) (*payments.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.CheckoutSession), args.Error(1)
}

// stubTxRunner runs the transactional function directly; the mock
// repositories ignore the transaction handle anyway.
type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type handlerDeps struct {
	sessions *mockSessionRepo
	messages *mockMessageRepo
	hub      *mockHub
	checkout *mockCheckoutClient
}

func newSessionHandler() (*SessionHandler, *handlerDeps) {
	deps := &handlerDeps{
		sessions: new(mockSessionRepo),
		messages: new(mockMessageRepo),
		hub:      new(mockHub),
		checkout: new(mockCheckoutClient),
	}
	sessionSvc := service.NewSessionService(stubTxRunner{}, deps.sessions, deps.messages, deps.hub)
	messageSvc := service.NewMessageService(deps.sessions, deps.messages, deps.hub)
	upgradeSvc := service.NewUpgradeService(deps.sessions, deps.hub, deps.checkout, "http://app.test")
	return NewSessionHandler(sessionSvc, messageSvc, upgradeSvc), deps
}
