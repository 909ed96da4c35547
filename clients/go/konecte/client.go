// Package konecte provides a client for the konecte chat bridge, including
// the optimistic-echo reconciliation protocol web clients use.
package konecte

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a chat bridge API client.
type Client struct {
	BaseURL    string
	ClaimKey   string // pre-shared key for agent endpoints, if used as an agent
	HTTPClient *http.Client
}

// NewClient creates a new bridge client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the server's error envelope.
type apiError struct {
	Error string `json:"error"`
}

// RequestError carries the server's status and reason for a failed call.
type RequestError struct {
	StatusCode int
	Reason     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("bridge: %d %s", e.StatusCode, e.Reason)
}

// doRequest performs an HTTP request and decodes the JSON response into out.
func (c *Client) doRequest(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ClaimKey != "" {
		req.Header.Set("X-Claim-Key", c.ClaimKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &RequestError{StatusCode: resp.StatusCode, Reason: apiErr.Error}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Send submits a web user's message to the channel bot.
func (c *Client) Send(target, userID, phone, text string) (*SendResult, error) {
	var result SendResult
	err := c.doRequest(http.MethodPost, "/messages", map[string]string{
		"target_channel_address": target,
		"origin_user_id":         userID,
		"origin_phone":           phone,
		"text":                   text,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reply ingests a bot reply on behalf of the channel agent.
func (c *Client) Reply(userID, text string) (*Message, error) {
	var result struct {
		Message Message `json:"message"`
	}
	err := c.doRequest(http.MethodPost, "/replies", map[string]string{
		"user_id": userID,
		"text":    text,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result.Message, nil
}

// Conversation fetches the full ordered thread for a conversation key.
func (c *Client) Conversation(key string) ([]Message, error) {
	var result struct {
		Messages []Message `json:"messages"`
	}
	err := c.doRequest(http.MethodGet, "/conversations/"+url.PathEscape(key), nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// Claim takes every unclaimed outbound entry for the agent's address.
func (c *Client) Claim(targetAddress string) ([]PendingOutbound, error) {
	var result struct {
		Messages []PendingOutbound `json:"messages"`
	}
	err := c.doRequest(http.MethodPost, "/outbound/claim", map[string]string{
		"target_address": targetAddress,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// ReportStatus reports a forwarding outcome for a claimed message.
func (c *Client) ReportStatus(messageID, status string) (*Message, error) {
	var msg Message
	err := c.doRequest(http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/status", map[string]string{
		"status": status,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
