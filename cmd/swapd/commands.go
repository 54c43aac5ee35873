package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ark-network/swapd/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// flags
var (
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory where the seed and the databases are stored",
	}
	logLevelFlag = &cli.IntFlag{
		Name:  "log-level",
		Usage: "log level, from 0 (panic) to 6 (trace)",
	}
	dbTypeFlag = &cli.StringFlag{
		Name:  "db-type",
		Usage: "swap store type (badger, sqlite)",
	}
	stateStoreTypeFlag = &cli.StringFlag{
		Name:  "state-store-type",
		Usage: "live state store type (inmemory, redis)",
	}
	redisUrlFlag = &cli.StringFlag{
		Name:  "redis-url",
		Usage: "redis url, required by the redis state store",
	}
	bitcoinNetworkFlag = &cli.StringFlag{
		Name:  "bitcoin-network",
		Usage: "bitcoin network (mainnet, testnet, regtest)",
	}
	esploraUrlFlag = &cli.StringFlag{
		Name:  "esplora-url",
		Usage: "url of the esplora api of the bitcoin network",
	}
	ethereumUrlFlag = &cli.StringFlag{
		Name:  "ethereum-url",
		Usage: "url of the json-rpc endpoint of the ethereum node",
	}
	ethereumChainIdFlag = &cli.Uint64Flag{
		Name:  "ethereum-chain-id",
		Usage: "chain id of the ethereum network",
	}
	pollIntervalFlag = &cli.DurationFlag{
		Name:  "poll-interval",
		Usage: "interval between two polls of the chain tips",
	}

	flags = []cli.Flag{
		datadirFlag, logLevelFlag, dbTypeFlag, stateStoreTypeFlag, redisUrlFlag,
		bitcoinNetworkFlag, esploraUrlFlag, ethereumUrlFlag, ethereumChainIdFlag,
		pollIntervalFlag,
	}

	flagKeys = map[string]string{
		datadirFlag.Name:         config.Datadir,
		logLevelFlag.Name:        config.LogLevel,
		dbTypeFlag.Name:          config.DbType,
		stateStoreTypeFlag.Name:  config.StateStoreType,
		redisUrlFlag.Name:        config.RedisUrl,
		bitcoinNetworkFlag.Name:  config.BitcoinNetwork,
		esploraUrlFlag.Name:      config.EsploraURL,
		ethereumUrlFlag.Name:     config.EthereumURL,
		ethereumChainIdFlag.Name: config.EthereumChainId,
		pollIntervalFlag.Name:    config.PollInterval,
	}
)

// commands
var (
	startCommand = &cli.Command{
		Name:   "start",
		Usage:  "Start the swap daemon",
		Action: startAction,
	}
	configCommand = &cli.Command{
		Name:   "config",
		Usage:  "Print the configuration of the swap daemon",
		Action: configAction,
	}
)

func startAction(_ *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	svc, err := cfg.AppService()
	if err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return err
	}

	go func() {
		for swapAction := range svc.GetActionsChannel() {
			log.Infof(
				"swap %s: %s %s ledger (%s)",
				swapAction.SwapId, swapAction.Action.Type,
				swapAction.Action.Side, swapAction.Action.Ledger,
			)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}

func configAction(_ *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(cfg.String())
	return nil
}
