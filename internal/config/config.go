package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ark-network/swapd/internal/core/application"
	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/core/ports"
	esploraconnector "github.com/ark-network/swapd/internal/infrastructure/connector/esplora"
	ethrpcconnector "github.com/ark-network/swapd/internal/infrastructure/connector/ethrpc"
	"github.com/ark-network/swapd/internal/infrastructure/db"
	timescheduler "github.com/ark-network/swapd/internal/infrastructure/scheduler/gocron"
	inmemorystatestore "github.com/ark-network/swapd/internal/infrastructure/state-store/inmemory"
	redisstatestore "github.com/ark-network/swapd/internal/infrastructure/state-store/redis"
	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	seedFile          = "seed"
	redisNumOfRetries = 10
)

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedStateStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedNetworks = supportedType{
		"mainnet": {},
		"testnet": {},
		"regtest": {},
	}
)

type Config struct {
	Datadir  string
	LogLevel int

	DbType         string
	EventDbType    string
	DbDir          string
	EventDbDir     string
	StateStoreType string
	RedisUrl       string
	SchedulerType  string

	BitcoinNetwork  string
	EsploraURL      string
	EthereumURL     string
	EthereumChainId uint64

	PollInterval      time.Duration
	WatchRetryTimeout time.Duration
	SeenBlocksLimit   int

	repo       ports.RepoManager
	svc        application.Service
	btc        ports.BitcoinConnector
	eth        ports.EthereumConnector
	scheduler  ports.SchedulerService
	stateStore ports.StateStore
	rootSeed   domain.RootSeed
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir           = "DATADIR"
	LogLevel          = "LOG_LEVEL"
	DbType            = "DB_TYPE"
	EventDbType       = "EVENT_DB_TYPE"
	StateStoreType    = "STATE_STORE_TYPE"
	RedisUrl          = "REDIS_URL"
	SchedulerType     = "SCHEDULER_TYPE"
	BitcoinNetwork    = "BITCOIN_NETWORK"
	EsploraURL        = "ESPLORA_URL"
	EthereumURL       = "ETHEREUM_URL"
	EthereumChainId   = "ETHEREUM_CHAIN_ID"
	PollInterval      = "POLL_INTERVAL"
	WatchRetryTimeout = "WATCH_RETRY_TIMEOUT"
	SeenBlocksLimit   = "SEEN_BLOCKS_LIMIT"

	defaultDatadir           = btcutil.AppDataDir("swapd", false)
	defaultLogLevel          = 4
	defaultDbType            = "badger"
	defaultEventDbType       = "badger"
	defaultStateStoreType    = "inmemory"
	defaultSchedulerType     = "gocron"
	defaultBitcoinNetwork    = "regtest"
	defaultEsploraURL        = "http://localhost:3000"
	defaultEthereumURL       = "http://localhost:8545"
	defaultEthereumChainId   = 1337
	defaultPollInterval      = time.Second
	defaultWatchRetryTimeout = 5 * time.Minute
	defaultSeenBlocksLimit   = 10000
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("SWAPD")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(StateStoreType, defaultStateStoreType)
	viper.SetDefault(SchedulerType, defaultSchedulerType)
	viper.SetDefault(BitcoinNetwork, defaultBitcoinNetwork)
	viper.SetDefault(EsploraURL, defaultEsploraURL)
	viper.SetDefault(EthereumURL, defaultEthereumURL)
	viper.SetDefault(EthereumChainId, defaultEthereumChainId)
	viper.SetDefault(PollInterval, defaultPollInterval)
	viper.SetDefault(WatchRetryTimeout, defaultWatchRetryTimeout)
	viper.SetDefault(SeenBlocksLimit, defaultSeenBlocksLimit)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	return &Config{
		Datadir:           viper.GetString(Datadir),
		LogLevel:          viper.GetInt(LogLevel),
		DbType:            viper.GetString(DbType),
		EventDbType:       viper.GetString(EventDbType),
		DbDir:             dbPath,
		EventDbDir:        dbPath,
		StateStoreType:    viper.GetString(StateStoreType),
		RedisUrl:          viper.GetString(RedisUrl),
		SchedulerType:     viper.GetString(SchedulerType),
		BitcoinNetwork:    viper.GetString(BitcoinNetwork),
		EsploraURL:        viper.GetString(EsploraURL),
		EthereumURL:       viper.GetString(EthereumURL),
		EthereumChainId:   viper.GetUint64(EthereumChainId),
		PollInterval:      viper.GetDuration(PollInterval),
		WatchRetryTimeout: viper.GetDuration(WatchRetryTimeout),
		SeenBlocksLimit:   viper.GetInt(SeenBlocksLimit),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedStateStores.supports(c.StateStoreType) {
		return fmt.Errorf("state store type not supported, please select one of: %s", supportedStateStores)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf("scheduler type not supported, please select one of: %s", supportedSchedulers)
	}
	if !supportedNetworks.supports(c.BitcoinNetwork) {
		return fmt.Errorf("bitcoin network not supported, please select one of: %s", supportedNetworks)
	}
	if c.StateStoreType == "redis" && len(c.RedisUrl) <= 0 {
		return fmt.Errorf("missing redis url")
	}
	if c.EthereumChainId == 0 {
		return fmt.Errorf("missing ethereum chain id")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval, must be greater than zero")
	}
	if c.SeenBlocksLimit <= 0 {
		return fmt.Errorf("invalid seen blocks limit, must be greater than zero")
	}

	if err := c.loadRootSeed(); err != nil {
		return err
	}
	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.connectors(); err != nil {
		return err
	}
	if err := c.stateStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

// loadRootSeed reads the root seed from the datadir, generating it on first
// run.
func (c *Config) loadRootSeed() error {
	path := filepath.Join(c.Datadir, seedFile)
	buf, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read seed: %s", err)
		}

		var seed domain.RootSeed
		if _, err := rand.Read(seed[:]); err != nil {
			return fmt.Errorf("failed to generate seed: %s", err)
		}
		if err := os.WriteFile(path, []byte(hex.EncodeToString(seed[:])), 0600); err != nil {
			return fmt.Errorf("failed to write seed: %s", err)
		}
		log.Infof("generated new seed in %s", path)
		c.rootSeed = seed
		return nil
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(buf)))
	if err != nil || len(raw) != len(c.rootSeed) {
		return fmt.Errorf("invalid seed in %s", path)
	}
	copy(c.rootSeed[:], raw)
	return nil
}

func (c *Config) repoManager() error {
	var svc ports.RepoManager
	var err error
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err = db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) connectors() error {
	btc, err := esploraconnector.NewConnector(c.EsploraURL)
	if err != nil {
		return err
	}
	eth, err := ethrpcconnector.NewConnector(context.Background(), c.EthereumURL)
	if err != nil {
		return err
	}

	c.btc = btc
	c.eth = eth
	return nil
}

func (c *Config) stateStoreService() error {
	var svc ports.StateStore
	var err error
	switch c.StateStoreType {
	case "inmemory":
		svc = inmemorystatestore.NewStateStore()
	case "redis":
		svc, err = redisstatestore.NewStateStoreFromURL(c.RedisUrl, redisNumOfRetries)
	default:
		err = fmt.Errorf("unknown state store type")
	}
	if err != nil {
		return err
	}

	c.stateStore = svc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		c.rootSeed,
		application.LedgersConfig{
			BitcoinNetwork:  c.BitcoinNetwork,
			EthereumChainId: c.EthereumChainId,
		},
		application.WatchConfig{
			PollInterval:    c.PollInterval,
			SeenBlocksLimit: c.SeenBlocksLimit,
			RetryTimeout:    c.WatchRetryTimeout,
		},
		c.btc, c.eth, c.scheduler, c.repo, c.stateStore,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	sort.Strings(types)
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
