package mocks

import (
	"context"
	"time"

	"authentik-admin/internal/domain"

	"github.com/stretchr/testify/mock"
)

type AccountUseCase struct {
	mock.Mock
}

func (m *AccountUseCase) CreateAccount(ctx context.Context, req domain.AccountRequest) (*domain.AccountResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountResult), args.Error(1)
}

func (m *AccountUseCase) RecoveryLink(ctx context.Context, username string) (*domain.RecoveryResult, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecoveryResult), args.Error(1)
}

func (m *AccountUseCase) CreateInvite(ctx context.Context, label string, expires time.Time) (*domain.InviteResult, error) {
	args := m.Called(ctx, label, expires)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InviteResult), args.Error(1)
}

func (m *AccountUseCase) SearchUsers(ctx context.Context, query string) (*domain.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SearchResult), args.Error(1)
}

func (m *AccountUseCase) ApplyAction(ctx context.Context, req domain.ActionRequest) (*domain.ActionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResult), args.Error(1)
}

func (m *AccountUseCase) RefreshDirectory(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *AccountUseCase) SuggestUsername(ctx context.Context, firstName, lastName string) domain.Resolution {
	return m.Called(ctx, firstName, lastName).Get(0).(domain.Resolution)
}
