package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Update represents a Telegram Update object (partial schema).
type Update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
		Message struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

type updateResponse struct {
	Ok          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description"`
	ErrorCode   int      `json:"error_code"`
}

// MessageHandler processes a free-text message for a chat.
type MessageHandler func(chatID int64, text string) Reply

// CallbackHandler processes an inline-keyboard selection for a chat.
type CallbackHandler func(chatID int64, data string) Reply

// Listen long-polls getUpdates until the context is cancelled, dispatching
// messages and button presses to the handlers and sending their replies.
// Only authChatID may drive the bot; anything else is logged and dropped
// without a response, to avoid leaking the bot's existence.
func (c *Client) Listen(ctx context.Context, authChatID int64, onMessage MessageHandler, onCallback CallbackHandler) {
	if c.token == "" || authChatID == 0 {
		log.Println("Telegram Listener: Credentials missing, disabled.")
		return
	}

	offset := 0
	log.Println("Telegram Listener: Started")

	for {
		if ctx.Err() != nil {
			log.Println("Telegram Listener: Stopped")
			return
		}

		result, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Telegram Listener: Stopped")
				return
			}
			log.Printf("Telegram Listener Error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if !result.Ok {
			log.Printf("Telegram API Error: %s (Code: %d)", result.Description, result.ErrorCode)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1

			switch {
			case update.CallbackQuery != nil:
				cb := update.CallbackQuery
				if cb.Message.Chat.ID != authChatID {
					log.Printf("⚠️ UNAUTHORIZED ACCESS ATTEMPT: User %s (ID: %d) pressed: %s",
						cb.From.Username, cb.Message.Chat.ID, cb.Data)
					continue
				}
				c.answerCallback(cb.ID)
				c.SendReply(cb.Message.Chat.ID, onCallback(cb.Message.Chat.ID, cb.Data))

			case update.Message != nil:
				msg := update.Message
				if msg.Chat.ID != authChatID {
					log.Printf("⚠️ UNAUTHORIZED ACCESS ATTEMPT: User %s (ID: %d) wrote: %s",
						msg.From.Username, msg.Chat.ID, msg.Text)
					continue
				}
				c.SendReply(msg.Chat.ID, onMessage(msg.Chat.ID, msg.Text))
			}
		}
	}
}

func (c *Client) getUpdates(ctx context.Context, offset int) (*updateResponse, error) {
	url := fmt.Sprintf("%s?offset=%d&timeout=60", c.apiURL("getUpdates"), offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result updateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
