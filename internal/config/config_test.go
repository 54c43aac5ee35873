package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ark-network/swapd/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	datadir := t.TempDir()
	t.Setenv("SWAPD_DATADIR", datadir)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, datadir, cfg.Datadir)
	require.Equal(t, "badger", cfg.DbType)
	require.Equal(t, "badger", cfg.EventDbType)
	require.Equal(t, "inmemory", cfg.StateStoreType)
	require.Equal(t, "gocron", cfg.SchedulerType)
	require.Equal(t, "regtest", cfg.BitcoinNetwork)
	require.Equal(t, uint64(1337), cfg.EthereumChainId)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.Equal(t, filepath.Join(datadir, "db"), cfg.DbDir)

	t.Run("valid", func(t *testing.T) {
		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		svc, err := cfg.AppService()
		require.NoError(t, err)
		require.NotNil(t, svc)
		svc.Stop()

		seed, err := os.ReadFile(filepath.Join(datadir, "seed"))
		require.NoError(t, err)
		require.Len(t, seed, 64)
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			name   string
			modify func(cfg *config.Config)
		}{
			{"db type", func(cfg *config.Config) { cfg.DbType = "postgres" }},
			{"event db type", func(cfg *config.Config) { cfg.EventDbType = "sqlite" }},
			{"state store type", func(cfg *config.Config) { cfg.StateStoreType = "memcached" }},
			{"scheduler type", func(cfg *config.Config) { cfg.SchedulerType = "block" }},
			{"bitcoin network", func(cfg *config.Config) { cfg.BitcoinNetwork = "signet" }},
			{"missing redis url", func(cfg *config.Config) { cfg.StateStoreType = "redis" }},
			{"chain id", func(cfg *config.Config) { cfg.EthereumChainId = 0 }},
			{"poll interval", func(cfg *config.Config) { cfg.PollInterval = 0 }},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				cfg, err := config.LoadConfig()
				require.NoError(t, err)
				f.modify(cfg)
				require.Error(t, cfg.Validate())
			})
		}
	})
}
