// Package integration предоставляет обработчики внешних систем
// (биржи, bridge, кастодианы) за единым интерфейсом ActionHandler.
package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var bodyJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPClientConfig содержит настройки HTTP клиента для внешних систем
type HTTPClientConfig struct {
	ConnectTimeout time.Duration // таймаут установки TCP соединения
	TotalTimeout   time.Duration // общий таймаут операции

	// Connection pooling
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	TLSHandshakeTimeout time.Duration
}

// DefaultHTTPClientConfig возвращает конфигурацию по умолчанию.
// Внешние вызовы движка редкие и долгие (swap, вывод), поэтому здесь
// нет агрессивных low-latency настроек - важнее надёжные таймауты.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout:      5 * time.Second,
		TotalTimeout:        30 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// HTTPClient - общий HTTP клиент обработчиков внешних систем
type HTTPClient struct {
	client *http.Client
}

var (
	sharedClient     *HTTPClient
	sharedClientOnce sync.Once
)

// SharedHTTPClient возвращает общий клиент (переиспользование соединений)
func SharedHTTPClient() *HTTPClient {
	sharedClientOnce.Do(func() {
		sharedClient = NewHTTPClient(DefaultHTTPClientConfig())
	})
	return sharedClient
}

// NewHTTPClient создает клиент с настроенным транспортом
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.TotalTimeout,
		},
	}
}

// GetJSON выполняет GET и декодирует JSON ответ в out
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, rawURL, headers, nil, out)
}

// PostJSON выполняет POST с JSON телом и декодирует JSON ответ в out
func (c *HTTPClient) PostJSON(ctx context.Context, rawURL string, headers map[string]string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := bodyJSON.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/json"
	return c.doJSON(ctx, http.MethodPost, rawURL, headers, reader, out)
}

// PostForm выполняет POST c form-encoded телом (биржевые API старого образца)
func (c *HTTPClient) PostForm(ctx context.Context, rawURL string, headers map[string]string, form url.Values, out interface{}) error {
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	return c.doJSON(ctx, http.MethodPost, rawURL, headers, strings.NewReader(form.Encode()), out)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, rawURL string, headers map[string]string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	if out == nil {
		return nil
	}

	if err := bodyJSON.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
