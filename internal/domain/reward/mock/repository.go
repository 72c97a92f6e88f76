package mock

import (
	context "context"
	reflect "reflect"
	time "time"

	catalog "github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	reward "github.com/carboniq/carboniq-rewards/internal/domain/reward"
	gomock "go.uber.org/mock/gomock"
)

// MockRepository is a mock of Repository interface.
type MockRepository struct {
	ctrl     *gomock.Controller
	recorder *MockRepositoryMockRecorder
	isgomock struct{}
}

// MockRepositoryMockRecorder is the mock recorder for MockRepository.
type MockRepositoryMockRecorder struct {
	mock *MockRepository
}

// NewMockRepository creates a new mock instance.
func NewMockRepository(ctrl *gomock.Controller) *MockRepository {
	mock := &MockRepository{ctrl: ctrl}
	mock.recorder = &MockRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRepository) EXPECT() *MockRepositoryMockRecorder {
	return m.recorder
}

// Append mocks base method.
func (m *MockRepository) Append(ctx context.Context, e *reward.Entry) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Append", ctx, e)
	ret0, _ := ret[0].(error)
	return ret0
}

// Append indicates an expected call of Append.
func (mr *MockRepositoryMockRecorder) Append(ctx, e any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Append", reflect.TypeOf((*MockRepository)(nil).Append), ctx, e)
}

// ExistsSince mocks base method.
func (m *MockRepository) ExistsSince(ctx context.Context, userID string, action catalog.Action, since time.Time) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ExistsSince", ctx, userID, action, since)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ExistsSince indicates an expected call of ExistsSince.
func (mr *MockRepositoryMockRecorder) ExistsSince(ctx, userID, action, since any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ExistsSince", reflect.TypeOf((*MockRepository)(nil).ExistsSince), ctx, userID, action, since)
}

// History mocks base method.
func (m *MockRepository) History(ctx context.Context, userID string, q reward.HistoryQuery) ([]reward.Entry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "History", ctx, userID, q)
	ret0, _ := ret[0].([]reward.Entry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// History indicates an expected call of History.
func (mr *MockRepositoryMockRecorder) History(ctx, userID, q any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "History", reflect.TypeOf((*MockRepository)(nil).History), ctx, userID, q)
}

// ListByUser mocks base method.
func (m *MockRepository) ListByUser(ctx context.Context, userID string) ([]reward.Entry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByUser", ctx, userID)
	ret0, _ := ret[0].([]reward.Entry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByUser indicates an expected call of ListByUser.
func (mr *MockRepositoryMockRecorder) ListByUser(ctx, userID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByUser", reflect.TypeOf((*MockRepository)(nil).ListByUser), ctx, userID)
}

// RecentBadges mocks base method.
func (m *MockRepository) RecentBadges(ctx context.Context, limit int) ([]reward.Entry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RecentBadges", ctx, limit)
	ret0, _ := ret[0].([]reward.Entry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// RecentBadges indicates an expected call of RecentBadges.
func (mr *MockRepositoryMockRecorder) RecentBadges(ctx, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RecentBadges", reflect.TypeOf((*MockRepository)(nil).RecentBadges), ctx, limit)
}
