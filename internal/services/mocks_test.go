package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockIdentityGate struct {
	mock.Mock
}

func (m *MockIdentityGate) IsCustomerActive(ctx context.Context, customerID int64) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

// activeGate returns a gate that reports every customer active.
func activeGate() *MockIdentityGate {
	gate := &MockIdentityGate{}
	gate.On("IsCustomerActive", mock.Anything, mock.Anything).Return(true, nil)
	return gate
}
