package mocks

import (
	"context"
	"time"

	"authentik-admin/internal/domain"

	"github.com/stretchr/testify/mock"
)

type IdentityProvider struct {
	mock.Mock
}

func (m *IdentityProvider) ListAllUsers(ctx context.Context) ([]domain.UserRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserRecord), args.Error(1)
}

func (m *IdentityProvider) SearchUsers(ctx context.Context, query string) ([]domain.UserRecord, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserRecord), args.Error(1)
}

func (m *IdentityProvider) FindByAttribute(ctx context.Context, key, value string) ([]domain.UserRecord, error) {
	args := m.Called(ctx, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserRecord), args.Error(1)
}

func (m *IdentityProvider) CreateUser(ctx context.Context, user domain.NewUser) (*domain.UserRecord, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserRecord), args.Error(1)
}

func (m *IdentityProvider) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *IdentityProvider) SetPassword(ctx context.Context, id, password string) error {
	return m.Called(ctx, id, password).Error(0)
}

func (m *IdentityProvider) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *IdentityProvider) UpdateAttributes(ctx context.Context, id string, attrs map[string]string) error {
	return m.Called(ctx, id, attrs).Error(0)
}

func (m *IdentityProvider) RecoveryLink(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *IdentityProvider) CreateInvite(ctx context.Context, label string, expires time.Time) (*domain.Invite, error) {
	args := m.Called(ctx, label, expires)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invite), args.Error(1)
}
