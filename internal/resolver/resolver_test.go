package resolver_test

import (
	"context"
	"errors"
	"testing"

	"authentik-admin/internal/directory"
	"authentik-admin/internal/domain"
	"authentik-admin/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Exists(username string) bool {
	return m.Called(username).Bool(0)
}

func (m *mockDirectory) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type staticLister struct {
	users []domain.UserRecord
	err   error
}

func (l *staticLister) ListAllUsers(context.Context) ([]domain.UserRecord, error) {
	return l.users, l.err
}

type memStore struct {
	records []domain.UserRecord
}

func (s *memStore) Load(context.Context) ([]domain.UserRecord, error) { return s.records, nil }

func (s *memStore) Save(_ context.Context, records []domain.UserRecord) error {
	s.records = append([]domain.UserRecord(nil), records...)
	return nil
}

func newCache(t *testing.T, local []string, upstream []string, upstreamErr error) *directory.Cache {
	t.Helper()
	toRecords := func(names []string) []domain.UserRecord {
		out := make([]domain.UserRecord, 0, len(names))
		for _, n := range names {
			out = append(out, domain.UserRecord{Username: n})
		}
		return out
	}
	cache := directory.NewCache(&staticLister{users: toRecords(upstream), err: upstreamErr}, &memStore{records: toRecords(local)}, 0, nil)
	require.NoError(t, cache.Load(context.Background()))
	return cache
}

func TestDeriveBase(t *testing.T) {
	testCases := []struct {
		name     string
		first    string
		last     string
		expected string
	}{
		{name: "Both names", first: "Alice", last: "Smith", expected: "alice-s"},
		{name: "First only", first: "Alice", expected: "alice"},
		{name: "Last only", last: "Smith", expected: "smith"},
		{name: "Neither", expected: "pending"},
		{name: "Whitespace only", first: "   ", last: "\t", expected: "pending"},
		{name: "Spaces in first name", first: "Mary Ann", last: "Lee", expected: "mary-ann-l"},
		{name: "Spaces in last name only", last: "van der Berg", expected: "van-der-berg"},
		{name: "Surrounding whitespace", first: "  Bob ", last: " Jones", expected: "bob-j"},
		{name: "Non-ASCII initial", first: "Zoë", last: "Ålund", expected: "zoë-å"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, resolver.DeriveBase(tc.first, tc.last))
			assert.Equal(t, resolver.DeriveBase(tc.first, tc.last), resolver.DeriveBase(tc.first, tc.last))
		})
	}
}

func TestResolveUnique_FreeBaseSkipsRefresh(t *testing.T) {
	ctx := context.Background()
	dir := &mockDirectory{}
	dir.On("Exists", "alice").Return(false)

	res := resolver.New(dir, nil).ResolveUnique(ctx, "alice")

	assert.Equal(t, "alice", res.Username)
	assert.False(t, res.Stale)
	assert.Zero(t, res.Probes)
	dir.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestResolveUnique_RefreshClearsStaleEntry(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t, []string{"alice"}, []string{"bob"}, nil)

	res := resolver.New(cache, nil).ResolveUnique(ctx, "alice")

	assert.Equal(t, "alice", res.Username)
	assert.False(t, res.Stale)
	assert.False(t, cache.Exists(res.Username))
}

func TestResolveUnique_ProbesSuffixes(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t, []string{"alice"}, []string{"alice", "alice-2"}, nil)

	res := resolver.New(cache, nil).ResolveUnique(ctx, "alice")

	assert.Equal(t, "alice-3", res.Username)
	assert.Equal(t, 2, res.Probes)
	assert.False(t, cache.Exists(res.Username))
}

func TestResolveUnique_CaseInsensitiveCollision(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t, []string{"Alice"}, []string{"ALICE", "alice-2"}, nil)

	res := resolver.New(cache, nil).ResolveUnique(ctx, "alice")

	assert.Equal(t, "alice-3", res.Username)
}

func TestResolveUnique_RefreshOnce(t *testing.T) {
	ctx := context.Background()
	dir := &mockDirectory{}
	dir.On("Exists", "bob").Return(true)
	dir.On("Exists", "bob-2").Return(true)
	dir.On("Exists", "bob-3").Return(false)
	dir.On("Refresh", ctx).Return(nil).Once()

	res := resolver.New(dir, nil).ResolveUnique(ctx, "bob")

	assert.Equal(t, "bob-3", res.Username)
	dir.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestResolveUnique_StaleProceeds(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t, []string{"alice", "alice-2"}, nil, errors.New("connection refused"))

	res := resolver.New(cache, nil).ResolveUnique(ctx, "alice")

	assert.Equal(t, "alice-3", res.Username)
	assert.True(t, res.Stale)
	assert.ElementsMatch(t, []string{"alice", "alice-2"}, usernames(cache.All()))
}

func TestResolveUnique_NeverReturnsExisting(t *testing.T) {
	ctx := context.Background()
	taken := []string{"carol", "carol-2", "carol-3", "carol-5", "dave"}
	cache := newCache(t, taken, taken, nil)
	r := resolver.New(cache, nil)

	for _, base := range []string{"carol", "dave", "erin", "carol-2"} {
		res := r.ResolveUnique(ctx, base)
		assert.False(t, cache.Exists(res.Username), base)
	}
	assert.Equal(t, "carol-4", r.ResolveUnique(ctx, "carol").Username)
}

func usernames(records []domain.UserRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Username)
	}
	return out
}
