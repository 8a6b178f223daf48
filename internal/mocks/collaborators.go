package mocks

import (
	"context"

	"authentik-admin/internal/domain"

	"github.com/stretchr/testify/mock"
)

type URLShortener struct {
	mock.Mock
}

func (m *URLShortener) Shorten(ctx context.Context, longURL, kind, title string) (string, error) {
	args := m.Called(ctx, longURL, kind, title)
	return args.String(0), args.Error(1)
}

type EventNotifier struct {
	mock.Mock
}

func (m *EventNotifier) Notify(ctx context.Context, event string, data map[string]any) {
	m.Called(ctx, event, data)
}

type UsernameResolver struct {
	mock.Mock
}

func (m *UsernameResolver) ResolveUnique(ctx context.Context, base string) domain.Resolution {
	return m.Called(ctx, base).Get(0).(domain.Resolution)
}
