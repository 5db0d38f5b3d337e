package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Button represents an inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Reply is what a handler wants sent back: text plus an optional inline
// keyboard, one inner slice per row. An empty Text sends nothing.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Client talks to the Telegram Bot API.
type Client struct {
	token string
	http  *http.Client
}

// NewClient returns a client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		// Long-poll requests ask for up to 60s, leave headroom.
		http: &http.Client{Timeout: 70 * time.Second},
	}
}

func (c *Client) apiURL(method string) string {
	return fmt.Sprintf("https://api.telegram.org/bot%s/%s", c.token, method)
}

// Notify sends a plain markdown message. Best-effort: failures are logged,
// never retried.
func (c *Client) Notify(chatID int64, text string) {
	c.send(chatID, text, nil)
}

// SendReply delivers a handler reply, attaching the keyboard if present.
func (c *Client) SendReply(chatID int64, r Reply) {
	if r.Text == "" {
		return
	}
	c.send(chatID, r.Text, r.Buttons)
}

func (c *Client) send(chatID int64, text string, buttons [][]Button) {
	if c.token == "" {
		log.Println("Warning: Telegram token missing, skipping message")
		return
	}

	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	if len(buttons) > 0 {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": buttons,
		}
	}

	body, _ := json.Marshal(payload)

	resp, err := c.http.Post(c.apiURL("sendMessage"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("Telegram send failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Telegram API Error: Status %s", resp.Status)
	}
}

// answerCallback acknowledges a button press so the client stops showing a
// spinner. Errors are ignored; the reply message matters, not the ack.
func (c *Client) answerCallback(callbackID string) {
	payload := map[string]string{"callback_query_id": callbackID}
	body, _ := json.Marshal(payload)

	resp, err := c.http.Post(c.apiURL("answerCallbackQuery"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		return
	}
	resp.Body.Close()
}
