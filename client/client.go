package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "culturebridge/1.0"
)

// Client talks to nostr relays over websocket and to blob servers over http.
type Client struct {
	client    *http.Client
	dialer    *websocket.Dialer
	cache     *cache.Cache
	userAgent string
}

func New() *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client: &httpClient,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: userAgent,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// RelayInfo is the NIP-11 relay information document.
type RelayInfo struct {
	URL           string         `json:"url,omitempty"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	PubKey        string         `json:"pubkey"`
	Contact       string         `json:"contact"`
	SupportedNIPs []int          `json:"supported_nips"`
	Software      string         `json:"software"`
	Version       string         `json:"version"`
	Limitation    map[string]any `json:"limitation,omitempty"`
}

// GetRelayInfo fetches the NIP-11 document of a relay. Results are cached.
func (c *Client) GetRelayInfo(ctx context.Context, relayURL string) (RelayInfo, error) {
	cacheKey := "relayinfo:" + relayURL
	if x, found := c.cache.Get(cacheKey); found {
		return x.(RelayInfo), nil
	}

	httpURL := relayURL
	if strings.HasPrefix(httpURL, "wss://") {
		httpURL = "https://" + strings.TrimPrefix(httpURL, "wss://")
	} else if strings.HasPrefix(httpURL, "ws://") {
		httpURL = "http://" + strings.TrimPrefix(httpURL, "ws://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return RelayInfo{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/nostr+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return RelayInfo{}, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RelayInfo{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info RelayInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return RelayInfo{}, fmt.Errorf("failed to decode relay info: %v", err)
	}
	info.URL = relayURL

	c.cache.Set(cacheKey, info, cache.DefaultExpiration)
	return info, nil
}
