// Package hue talks to a Hue bridge over the v1 REST API, and provides a
// mock bridge for running the panel without hardware.
package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/fixture"
)

// ErrNotAuthenticated is returned when no bridge token is configured.
var ErrNotAuthenticated = errors.New("hue bridge token not configured")

// DeviceType identifies lightdeck when pairing with a bridge.
const DeviceType = "lightdeck#daemon"

// Client sends fixture commands over raw v1 requests and lists fixtures
// through huego. Light state bodies are partial, which huego.State cannot
// express since it always sends "on".
type Client struct {
	address    string
	token      string
	httpClient *http.Client
	bridge     *huego.Bridge
}

// NewClient creates a client for the bridge at address.
func NewClient(address, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		address:    address,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		bridge:     huego.New(address, token),
	}
}

// Pair creates a new bridge user. The link button must be pressed first.
func Pair(address, deviceType string) (string, error) {
	token, err := huego.New(address, "").CreateUser(deviceType)
	if err != nil {
		return "", fmt.Errorf("failed to create bridge user: %w", err)
	}
	return token, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Address returns the bridge address.
func (c *Client) Address() string {
	return c.address
}

func (c *Client) v1URL(path string) string {
	return fmt.Sprintf("http://%s/api/%s/%s", c.address, c.token, path)
}

func (c *Client) v1Request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.v1URL(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// SetState sends a partial state update to one light.
func (c *Client) SetState(ctx context.Context, id string, u fixture.Update) error {
	if c.token == "" {
		return ErrNotAuthenticated
	}

	body, err := json.Marshal(u)
	if err != nil {
		return err
	}

	resp, err := c.v1Request(ctx, http.MethodPut, fmt.Sprintf("lights/%s/state", id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to set light state: %s", string(raw))
	}

	var results []apiResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return fmt.Errorf("failed to decode light state response: %w", err)
	}
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}

	log.Debug().Str("light", id).RawJSON("state", body).Msg("Light state set")
	return nil
}

// Fixtures lists every light the bridge knows.
func (c *Client) Fixtures(ctx context.Context) ([]fixture.Fixture, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	lights, err := c.bridge.GetLightsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lights: %w", err)
	}

	out := make([]fixture.Fixture, 0, len(lights))
	for _, l := range lights {
		out = append(out, fromHuego(l))
	}
	return out, nil
}

func fromHuego(l huego.Light) fixture.Fixture {
	f := fixture.Fixture{
		ID:      strconv.Itoa(l.ID),
		Name:    l.Name,
		Type:    l.Type,
		ModelID: l.ModelID,
	}
	if s := l.State; s != nil {
		f.Reachable = s.Reachable
		f.State = fixture.State{
			On:        s.On,
			Bri:       s.Bri,
			ColorMode: s.ColorMode,
		}
		if s.ColorMode != "" || s.Hue != 0 || s.Sat != 0 {
			f.State.Hue = fixture.Ptr(s.Hue)
			f.State.Sat = fixture.Ptr(s.Sat)
		}
		if s.Ct != 0 {
			f.State.Ct = fixture.Ptr(s.Ct)
		}
	}
	return f
}
