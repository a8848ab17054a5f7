package db

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	t.Parallel()

	ms, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)

	for i, m := range ms {
		assert.Equal(t, uint(i+1), m.Version, "versions must be contiguous")
		assert.NotEmpty(t, m.Name)
	}
	assert.Equal(t, "users", ms[0].Name)
}

func TestEmbeddedMigrationsHaveDownSteps(t *testing.T) {
	t.Parallel()

	src, err := newSource()
	require.NoError(t, err)
	defer src.Close()

	ms, err := listMigrations(src)
	require.NoError(t, err)
	for _, m := range ms {
		r, _, err := src.ReadDown(m.Version)
		require.NoError(t, err, "migration %d has no down step", m.Version)
		_ = r.Close()
	}
}

func TestListMigrations(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"m/0002_second.up.sql":  {Data: []byte("SELECT 2;")},
		"m/0001_first.up.sql":   {Data: []byte("SELECT 1;")},
		"m/0001_first.down.sql": {Data: []byte("SELECT 0;")},
		"m/README.md":           {Data: []byte("ignored")},
	}

	src, err := iofs.New(fsys, "m")
	require.NoError(t, err)
	defer src.Close()

	ms, err := listMigrations(src)
	require.NoError(t, err)
	assert.Equal(t, []Migration{{Version: 1, Name: "first"}, {Version: 2, Name: "second"}}, ms)
}

func TestDuplicateVersionsAreRejected(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"m/0001_a.up.sql": {Data: []byte("x")},
		"m/0001_b.up.sql": {Data: []byte("y")},
	}
	_, err := iofs.New(fsys, "m")
	assert.Error(t, err)
}

func TestAppliedBetween(t *testing.T) {
	t.Parallel()

	ms := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	assert.Equal(t, 4, appliedBetween(ms, 0, 4))
	assert.Equal(t, 2, appliedBetween(ms, 2, 4))
	assert.Equal(t, 0, appliedBetween(ms, 4, 4))
}

func TestMigrateIsIdempotent(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = Migrate(ctx, pool)
	require.NoError(t, err)

	n, err := Migrate(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second run must apply nothing")

	st, err := CurrentStatus(ctx, pool)
	require.NoError(t, err)
	ms, err := Migrations()
	require.NoError(t, err)
	assert.Equal(t, ms[len(ms)-1].Version, st.Version)
	assert.False(t, st.Dirty)

	// the pool stays usable after the migrator is closed
	require.NoError(t, pool.Ping(ctx))
}
