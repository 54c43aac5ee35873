package badgerdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					log.WithError(err).Warn("failed to run value log gc")
				}
			}
		}()
	}

	return db, nil
}

func parseConfig(config []interface{}) (string, badger.Logger, error) {
	if len(config) != 2 {
		return "", nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("invalid base directory")
	}

	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return "", nil, fmt.Errorf("invalid logger")
		}
	}
	return baseDir, logger, nil
}

func deserializeEvent(buf []byte) (domain.Event, error) {
	var header domain.SwapEvent
	if err := json.Unmarshal(buf, &header); err != nil {
		return nil, err
	}

	switch header.Type {
	case domain.EventTypeSwapProposed:
		return decode[domain.SwapProposed](buf)
	case domain.EventTypeSwapAccepted:
		return decode[domain.SwapAccepted](buf)
	case domain.EventTypeSwapDeclined:
		return decode[domain.SwapDeclined](buf)
	case domain.EventTypeHtlcDeployed:
		return decode[domain.HtlcDeployed](buf)
	case domain.EventTypeHtlcFunded:
		return decode[domain.HtlcFunded](buf)
	case domain.EventTypeHtlcRedeemed:
		return decode[domain.HtlcRedeemed](buf)
	case domain.EventTypeHtlcRefunded:
		return decode[domain.HtlcRefunded](buf)
	default:
		return nil, fmt.Errorf("unknown event type %d", header.Type)
	}
}

func decode[T domain.Event](buf []byte) (domain.Event, error) {
	var event T
	if err := json.Unmarshal(buf, &event); err != nil {
		return nil, err
	}
	return event, nil
}
