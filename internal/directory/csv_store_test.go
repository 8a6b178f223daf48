package directory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"authentik-admin/internal/directory"
	"authentik-admin/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVStore_MissingFileIsEmpty(t *testing.T) {
	store := directory.NewCSVStore(filepath.Join(t.TempDir(), "absent.csv"))

	records, err := store.Load(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestCSVStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "users.csv")
	store := directory.NewCSVStore(path)

	records := []domain.UserRecord{
		{Username: "alice", FullName: "Alice Smith", Email: "alice@example.org", InvitedBy: "bob", Intro: "Hi, I'm Alice.\nI like \"quotes\".", ID: "12"},
		{Username: "bob", ID: "13"},
	}

	require.NoError(t, store.Save(ctx, records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "username,full_name,email,invited_by,intro,id_or_pk\n")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, records[0].Intro, loaded[0].Intro)
	assert.Equal(t, "bob", loaded[0].InvitedBy)
	assert.Equal(t, "13", loaded[1].ID)
	assert.True(t, loaded[1].IsActive)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCSVStore_ToleratesColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	content := "id_or_pk,email,username\n5,erin@example.org,erin\n6,,frank,extra\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := directory.NewCSVStore(path).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, domain.UserRecord{Username: "erin", Email: "erin@example.org", ID: "5", IsActive: true}, loaded[0])
	assert.Equal(t, "frank", loaded[1].Username)
	assert.Empty(t, loaded[1].FullName)
}

func TestCSVStore_RejectsFileWithoutUsernameColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,email\nalice,a@example.org\n"), 0o644))

	_, err := directory.NewCSVStore(path).Load(context.Background())

	assert.Error(t, err)
}

func TestCSVStore_SaveReplacesContent(t *testing.T) {
	ctx := context.Background()
	store := directory.NewCSVStore(filepath.Join(t.TempDir(), "users.csv"))

	require.NoError(t, store.Save(ctx, []domain.UserRecord{{Username: "a"}, {Username: "b"}}))
	require.NoError(t, store.Save(ctx, []domain.UserRecord{{Username: "c"}}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names(loaded))
}
