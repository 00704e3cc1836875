package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// MockSource implements source.Source with testify expectations
type MockSource struct {
	mock.Mock
}

// New creates a MockSource reporting the given name
func New(name string) *MockSource {
	m := &MockSource{}
	m.On("Name").Return(name).Maybe()
	return m
}

func (m *MockSource) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSource) ReadLogs(ctx context.Context) ([]record.RawReading, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]record.RawReading), args.Error(1)
}

// FuncSource delegates reads to a function, for tests that need control over each call
type FuncSource struct {
	SourceName   string
	ReadLogsFunc func(ctx context.Context) ([]record.RawReading, error)
}

func (f *FuncSource) Name() string {
	return f.SourceName
}

// ReadLogs delegates to ReadLogsFunc, returning nothing when it is unset
func (f *FuncSource) ReadLogs(ctx context.Context) ([]record.RawReading, error) {
	if f.ReadLogsFunc != nil {
		return f.ReadLogsFunc(ctx)
	}
	return []record.RawReading{}, nil
}
