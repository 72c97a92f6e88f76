package mock

import (
	context "context"
	reflect "reflect"

	stats "github.com/carboniq/carboniq-rewards/internal/domain/stats"
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

// CountAhead mocks base method.
func (m *MockRepository) CountAhead(ctx context.Context, s *stats.Snapshot, q stats.Query) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CountAhead", ctx, s, q)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CountAhead indicates an expected call of CountAhead.
func (mr *MockRepositoryMockRecorder) CountAhead(ctx, s, q any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CountAhead", reflect.TypeOf((*MockRepository)(nil).CountAhead), ctx, s, q)
}

// CreateIfAbsent mocks base method.
func (m *MockRepository) CreateIfAbsent(ctx context.Context, s *stats.Snapshot) (*stats.Snapshot, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateIfAbsent", ctx, s)
	ret0, _ := ret[0].(*stats.Snapshot)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CreateIfAbsent indicates an expected call of CreateIfAbsent.
func (mr *MockRepositoryMockRecorder) CreateIfAbsent(ctx, s any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateIfAbsent", reflect.TypeOf((*MockRepository)(nil).CreateIfAbsent), ctx, s)
}

// Get mocks base method.
func (m *MockRepository) Get(ctx context.Context, userID string) (*stats.Snapshot, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, userID)
	ret0, _ := ret[0].(*stats.Snapshot)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Get indicates an expected call of Get.
func (mr *MockRepositoryMockRecorder) Get(ctx, userID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockRepository)(nil).Get), ctx, userID)
}

// InstitutionTotals mocks base method.
func (m *MockRepository) InstitutionTotals(ctx context.Context, limit int) ([]stats.InstitutionTotals, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "InstitutionTotals", ctx, limit)
	ret0, _ := ret[0].([]stats.InstitutionTotals)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// InstitutionTotals indicates an expected call of InstitutionTotals.
func (mr *MockRepositoryMockRecorder) InstitutionTotals(ctx, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "InstitutionTotals", reflect.TypeOf((*MockRepository)(nil).InstitutionTotals), ctx, limit)
}

// List mocks base method.
func (m *MockRepository) List(ctx context.Context, q stats.Query) ([]stats.Snapshot, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "List", ctx, q)
	ret0, _ := ret[0].([]stats.Snapshot)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// List indicates an expected call of List.
func (mr *MockRepositoryMockRecorder) List(ctx, q any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "List", reflect.TypeOf((*MockRepository)(nil).List), ctx, q)
}

// SetRanks mocks base method.
func (m *MockRepository) SetRanks(ctx context.Context, ranks []stats.RankAssignment) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetRanks", ctx, ranks)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetRanks indicates an expected call of SetRanks.
func (mr *MockRepositoryMockRecorder) SetRanks(ctx, ranks any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetRanks", reflect.TypeOf((*MockRepository)(nil).SetRanks), ctx, ranks)
}

// Upsert mocks base method.
func (m *MockRepository) Upsert(ctx context.Context, s *stats.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, s)
	ret0, _ := ret[0].(error)
	return ret0
}

// Upsert indicates an expected call of Upsert.
func (mr *MockRepositoryMockRecorder) Upsert(ctx, s any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockRepository)(nil).Upsert), ctx, s)
}
