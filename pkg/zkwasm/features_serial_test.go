//go:build !parallel

package zkwasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParallelUnsupportedInSerialBuild(t *testing.T) {
	require.Equal(t, Serial, DefaultMode())
	require.False(t, ParallelAvailable())

	_, err := Initialize(Config{Mode: Parallel})
	requireKind(t, err, KindUnsupportedMode)
	require.ErrorIs(t, err, ErrUnsupportedMode)

	cfg := Defaults()
	cfg.Mode = Parallel
	_, err = Load(cfg)
	requireKind(t, err, KindUnsupportedMode)

	// The failed attempt left the slot free.
	c, err := Initialize(Config{Mode: Serial})
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
