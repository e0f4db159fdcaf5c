package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"wagateway/pkg/session/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	apiBase              = "/api"
	endpointSendText     = "/sendText"
	endpointSendImage    = "/sendImage"
	endpointSendVideo    = "/sendVideo"
	endpointSendAudio    = "/sendAudio"
	endpointSendDocument = "/sendDocument"
	endpointSendSticker  = "/sendSticker"

	headerAPIKey = "X-Api-Key"
)

// Client talks to the session service over HTTP for the high-level send
// primitives and over a websocket command channel for raw sends
type Client struct {
	config types.ClientConfig
	client *http.Client
}

// NewClient creates a session service client
func NewClient(config types.ClientConfig) *Client {
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type sendRequest struct {
	Recipient string              `json:"recipient"`
	IsGroup   bool                `json:"isGroup"`
	Text      string              `json:"text,omitempty"`
	Media     *types.MediaContent `json:"media,omitempty"`
}

func (c *Client) SendText(ctx context.Context, sessionID, recipient, text string, isGroup bool) (*types.SendResult, error) {
	return c.sendRequest(ctx, sessionID, endpointSendText, sendRequest{
		Recipient: recipient,
		IsGroup:   isGroup,
		Text:      text,
	})
}

func (c *Client) SendImage(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.sendMedia(ctx, sessionID, endpointSendImage, recipient, media, isGroup)
}

func (c *Client) SendVideo(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.sendMedia(ctx, sessionID, endpointSendVideo, recipient, media, isGroup)
}

func (c *Client) SendAudio(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.sendMedia(ctx, sessionID, endpointSendAudio, recipient, media, isGroup)
}

func (c *Client) SendDocument(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.sendMedia(ctx, sessionID, endpointSendDocument, recipient, media, isGroup)
}

func (c *Client) SendSticker(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.sendMedia(ctx, sessionID, endpointSendSticker, recipient, media, isGroup)
}

func (c *Client) sendMedia(ctx context.Context, sessionID, endpoint, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.sendRequest(ctx, sessionID, endpoint, sendRequest{
		Recipient: recipient,
		IsGroup:   isGroup,
		Media:     &media,
	})
}

// SendRaw issues a command over the raw websocket channel. Used for
// message kinds the REST primitives don't cover (location, list).
func (c *Client) SendRaw(ctx context.Context, sessionID, kind string, payload interface{}) (*types.SendResult, error) {
	wsURL, err := c.rawURL(sessionID)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{headerAPIKey: []string{c.config.APIKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial raw channel: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	command := map[string]interface{}{
		"kind":    kind,
		"payload": payload,
	}
	if err := wsjson.Write(dialCtx, conn, command); err != nil {
		return nil, fmt.Errorf("failed to write raw command: %w", err)
	}

	var result types.SendResult
	if err := wsjson.Read(dialCtx, conn, &result); err != nil {
		return nil, fmt.Errorf("failed to read raw command result: %w", err)
	}
	if result.Status == "error" {
		return nil, fmt.Errorf("raw command rejected: %s", result.Raw)
	}

	return &result, nil
}

// GetSession returns the session info including its connection state
func (c *Client) GetSession(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	endpoint := fmt.Sprintf("%s%s/sessions/%s", c.config.BaseURL, apiBase, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp types.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("session service returned status %d: %s", resp.StatusCode, errResp.Message)
	}

	var info types.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode session info: %w", err)
	}
	return &info, nil
}

func (c *Client) sendRequest(ctx context.Context, sessionID, endpoint string, payload sendRequest) (*types.SendResult, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	fullURL := fmt.Sprintf("%s%s/%s%s", c.config.BaseURL, apiBase, url.PathEscape(sessionID), endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp types.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Message)
	}

	var result types.SendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set(headerAPIKey, c.config.APIKey)
	}
}

func (c *Client) rawURL(sessionID string) (string, error) {
	base := c.config.EventsWSURL
	if base == "" {
		return "", fmt.Errorf("events websocket URL is not configured")
	}
	return fmt.Sprintf("%s/ws/%s/raw", base, url.PathEscape(sessionID)), nil
}

// Timeout returns the configured request timeout
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}
