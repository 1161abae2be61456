package tls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Disabled(t *testing.T) {
	cfg, src, err := Load(context.Background(), false, "unix:///nowhere.sock", zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Nil(t, src)

	// nil Source is safe to watch and close
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	src.Watch(ctx, time.Millisecond)
	src.Close()
}
