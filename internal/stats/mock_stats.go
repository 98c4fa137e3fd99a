package stats

import "github.com/stretchr/testify/mock"

// MockStatsUpdater stands in for StatsUpdater in hub and HTTP tests.
type MockStatsUpdater struct {
	mock.Mock
}

func (m *MockStatsUpdater) RegisterMetric(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Incr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Decr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Value(name string) int64 {
	args := m.Called(name)
	return args.Get(0).(int64)
}
