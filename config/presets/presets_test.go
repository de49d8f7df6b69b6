package presets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-delivery/ordering"
)

func TestPresets(t *testing.T) {
	require.Equal(t, []string{"fast", "strict"}, Options())
	for _, name := range Options() {
		conf, err := Get(name)
		require.NoError(t, err, name)
		require.NoError(t, conf.Validate(), name)
	}

	conf, err := Get("strict")
	require.NoError(t, err)
	require.Equal(t, ordering.StrategyFull, conf.Ordering.GapFillStrategy)

	_, err = Get("unknown")
	require.ErrorContains(t, err, "fast")
}
