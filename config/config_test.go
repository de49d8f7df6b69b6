package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-delivery/ordering"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	conf, err := Load("", viper.New())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), *conf)
}

func TestLoadConfigMissingFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), viper.New())
	require.ErrorContains(t, err, "failed to read config file")
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"

[ordering]
gap-fill-strategy = "full"
gap-fill-timeout = "2s"
max-gap-requests = 7

[resend]
request-retry-delay = "250ms"

[resend.nodes]
"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" = "http://127.0.0.1:8891"

[pubsub]
listen = "/ip4/127.0.0.1/tcp/0,/ip4/127.0.0.1/tcp/1"
`)
	conf, err := Load(path, viper.New())
	require.NoError(t, err)

	expected := DefaultConfig()
	expected.Logging.Level = "debug"
	expected.Ordering.GapFillStrategy = ordering.StrategyFull
	expected.Ordering.GapFillTimeout = 2 * time.Second
	expected.Ordering.MaxGapRequests = 7
	expected.Resend.RequestRetryDelay = 250 * time.Millisecond
	expected.Resend.Nodes = map[string]string{
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": "http://127.0.0.1:8891",
	}
	expected.PubSub.Listen = []string{"/ip4/127.0.0.1/tcp/0", "/ip4/127.0.0.1/tcp/1"}
	require.Empty(t, cmp.Diff(expected, *conf))
}

func TestLoadRejects(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		content string
	}{
		{"unknown key", "[ordering]\nunknown = 1\n"},
		{"unknown section", "[storage]\nsize = 1\n"},
		{"unknown strategy", "[ordering]\ngap-fill-strategy = \"medium\"\n"},
		{"negative requests", "[ordering]\nmax-gap-requests = -1\n"},
		{"bad level", "[logging]\nlevel = \"loud\"\n"},
		{"bad listen address", "[pubsub]\nlisten = \"garbage\"\n"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content), viper.New())
			require.Error(t, err)
		})
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "[ordering]\nmax-gap-requests = 7\ngap-fill-timeout = \"2s\"\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs, DefaultConfig())
	require.NoError(t, fs.Parse([]string{
		"--gap-fill-strategy=full",
		"--max-gap-requests=2",
		"--metrics-addr=127.0.0.1:0",
	}))
	vip := viper.New()
	require.NoError(t, BindFlags(vip, fs))

	conf, err := Load(path, vip)
	require.NoError(t, err)
	require.Equal(t, ordering.StrategyFull, conf.Ordering.GapFillStrategy)
	require.Equal(t, 2, conf.Ordering.MaxGapRequests)
	require.Equal(t, 2*time.Second, conf.Ordering.GapFillTimeout)
	require.Equal(t, "127.0.0.1:0", conf.Metrics.Addr)
	require.True(t, conf.Ordering.GapFill)
}
