// Package chatclient talks to the assistant's legacy /messages endpoint.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "http://127.0.0.1:8000"

// Client sends the messages of one conversation to the server.
type Client struct {
	baseURL string
	chatID  string
	http    *http.Client
}

type messagesRequest struct {
	Type    string  `json:"type"`
	Message message `json:"message"`
}

type message struct {
	Chat chat   `json:"chat"`
	Text string `json:"text"`
}

type chat struct {
	ID string `json:"id"`
}

type messagesResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func New(baseURL, chatID string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		chatID:  chatID,
		http:    &http.Client{Timeout: timeout},
	}
}

// ChatID returns the conversation identifier used for every message.
func (c *Client) ChatID() string { return c.chatID }

// Send posts text and returns the assistant's answer.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Type:    "web",
		Message: message{Chat: chat{ID: c.chatID}, Text: text},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post /messages: %w", err)
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error == "" {
			out.Error = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("server error %d: %s", resp.StatusCode, out.Error)
	}
	return out.Response, nil
}
