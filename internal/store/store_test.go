package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/model"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	st, err := New(ctx, config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = New(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	_, err = New(ctx, config.StoreConfig{Driver: "mysql"})
	assert.Error(t, err)

	_, err = New(ctx, config.StoreConfig{Driver: "postgres", DatabaseURL: "not a url ::"})
	assert.Error(t, err)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(model.RunFilter{}))
	assert.Equal(t, defaultListLimit, listLimit(model.RunFilter{Limit: -1}))
	assert.Equal(t, 5, listLimit(model.RunFilter{Limit: 5}))
}
