package cache_test

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/mautops/qms-workflow/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := cache.OpenRedis(mr.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	mr.Close()
	_, err = cache.OpenRedis(mr.Addr(), 0)
	assert.Error(t, err)
}
