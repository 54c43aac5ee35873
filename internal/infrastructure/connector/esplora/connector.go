package esploraconnector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ark-network/swapd/internal/core/ports"
	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout = 30 * time.Second

	// A block announced by the tip endpoint may not be served yet by the
	// instance answering the next request.
	notFoundRetries       = 3
	notFoundRetryInterval = 500 * time.Millisecond
)

type esploraClient struct {
	url    string
	client *http.Client
}

func NewConnector(esploraURL string) (ports.BitcoinConnector, error) {
	if len(esploraURL) <= 0 {
		return nil, fmt.Errorf("missing esplora url")
	}
	if _, err := url.Parse(esploraURL); err != nil {
		return nil, fmt.Errorf("invalid esplora url: %s", err)
	}
	return &esploraClient{
		url:    esploraURL,
		client: &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *esploraClient) LatestBlock(ctx context.Context) (*wire.MsgBlock, error) {
	body, err := c.get(ctx, "blocks", "tip", "hash")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(strings.TrimSpace(string(buf)))
	if err != nil {
		return nil, fmt.Errorf("invalid tip hash: %s", err)
	}
	return c.BlockByHash(ctx, *hash)
}

func (c *esploraClient) BlockByHash(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	var block *wire.MsgBlock
	op := func() error {
		b, err := c.blockByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, watcher.ErrNotFound) {
				return err
			}
			return backoff.Permanent(err)
		}
		block = b
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(notFoundRetryInterval), notFoundRetries)
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return block, nil
}

func (c *esploraClient) blockByHash(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	body, err := c.get(ctx, "block", hash.String(), "raw")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var block wire.MsgBlock
	if err := block.Deserialize(body); err != nil {
		return nil, fmt.Errorf("failed to decode block %s: %s", hash, err)
	}
	return &block, nil
}

func (c *esploraClient) get(ctx context.Context, path ...string) (io.ReadCloser, error) {
	endpoint, err := url.JoinPath(c.url, path...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", endpoint, watcher.ErrNotFound)
	default:
		content, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%s endpoint HTTP error: %s (%s)", endpoint, resp.Status, content)
	}
}
