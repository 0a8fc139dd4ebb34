// Package fetch downloads ballot files published over HTTP.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/socialchoice/internal/config"
)

// IsRemote reports whether path is an http(s) URL.
func IsRemote(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

type Client struct {
	httpClient *resty.Client
}

func NewClient(cfg *config.FetchEnvConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	cli := resty.New().
		SetTimeout(cfg.FetchTimeout).
		SetRetryCount(cfg.FetchRetryMax).
		SetRetryWaitTime(cfg.FetchRetryWait).
		SetRetryMaxWaitTime(cfg.FetchRetryWait * 2).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &Client{httpClient: cli}, nil
}

// Get downloads url. Bodies sent with zstd content encoding, or URLs ending
// in ".zst", are decompressed.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("ballot download failed")
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Str("url", url).Msg("ballot download non-2xx")
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode())
	}

	data := resp.Body()
	encoded := strings.Contains(strings.ToLower(resp.Header().Get("Content-Encoding")), "zstd")
	if encoded || strings.HasSuffix(strings.ToLower(url), ".zst") {
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zstd: failed to create reader: %w", err)
		}
		defer r.Close()

		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: failed to decompress body: %w", err)
		}
		data = out
	}

	log.Debug().Str("url", url).Int("bytes", len(data)).Msg("downloaded ballot file")
	return data, nil
}
