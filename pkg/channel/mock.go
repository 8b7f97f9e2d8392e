package channel

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockChannel is a testify mock implementing Channel for use in tests of
// code that depends on the registry.
type MockChannel struct {
	mock.Mock

	ChannelName string
}

// NewMockChannel creates a mock registered under the given name.
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{ChannelName: name}
}

func (m *MockChannel) Name() string {
	if m.ChannelName != "" {
		return m.ChannelName
	}
	return "mock"
}

func (m *MockChannel) ValidateRecipient(recipient string) error {
	args := m.Called(recipient)
	return args.Error(0)
}

func (m *MockChannel) Send(ctx context.Context, recipient string, msg Message) Result {
	args := m.Called(ctx, recipient, msg)
	return args.Get(0).(Result)
}
