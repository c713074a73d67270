package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"flipscout/config"
	"flipscout/models"
)

// Drafter composes outreach messages for viable listings. When an
// OpenAI-compatible API is configured it drafts with the model and falls
// back to the template on any failure, so message sending never blocks
// on a third-party outage.
type Drafter struct {
	cfg    *config.DrafterConfig
	client *http.Client
}

func NewDrafter(cfg *config.DrafterConfig, client *http.Client) *Drafter {
	return &Drafter{cfg: cfg, client: client}
}

// Draft returns a short negotiation message for the listing.
func (d *Drafter) Draft(ctx context.Context, listing *models.Listing) string {
	if d.cfg != nil && d.cfg.APIKey != "" {
		msg, err := d.draftWithModel(ctx, listing)
		if err != nil {
			log.Printf("Warning: model draft failed, using template: %v", err)
		} else if msg != "" {
			return msg
		}
	}
	return templateMessage(listing)
}

func templateMessage(listing *models.Listing) string {
	offer := listing.Price * 85 / 100
	if offer < 1 {
		offer = 1
	}
	return fmt.Sprintf(
		"Hi! Is the %s still available? I can pick it up today and pay %d in cash. Would that work for you?",
		listing.Title, offer,
	)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (d *Drafter) draftWithModel(ctx context.Context, listing *models.Listing) (string, error) {
	prompt := fmt.Sprintf(
		"Write a short, friendly buyer message for this marketplace listing. "+
			"Ask if it is available and offer slightly below asking. "+
			"Title: %s. Asking price: %d. Reply with the message only.",
		listing.Title, listing.Price,
	)

	body, err := json.Marshal(chatRequest{
		Model: d.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := d.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model returned %d: %s", resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}
