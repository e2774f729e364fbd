// Package graph is a thin client for the Meta Graph API endpoints the relay uses.
package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"meta-relay/internal/config"
)

type Client struct {
	http   *resty.Client
	meta   config.MetaConfig
	logger *zap.Logger
}

// NewClient builds a client on top of httpClient so proxy settings carry over.
// A nil httpClient falls back to http.DefaultClient.
func NewClient(meta config.MetaConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	rc := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(meta.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if meta.HTTPTimeoutSeconds > 0 {
		rc.SetTimeout(time.Duration(meta.HTTPTimeoutSeconds) * time.Second)
	}

	return &Client{
		http:   rc,
		meta:   meta,
		logger: logger,
	}
}

// SendWhatsAppText posts a text message and returns the provider message id.
func (c *Client) SendWhatsAppText(ctx context.Context, to, body string) (string, error) {
	payload := whatsAppTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             whatsAppTextBody{Body: body},
	}
	return c.postWhatsApp(ctx, payload, to)
}

// SendWhatsAppTemplate posts a template message and returns the provider message id.
func (c *Client) SendWhatsAppTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	lang := msg.LanguageCode
	if lang == "" {
		lang = c.meta.DefaultTemplateLanguage
	}

	payload := whatsAppTemplateRequest{
		MessagingProduct: "whatsapp",
		To:               msg.To,
		Type:             "template",
		Template: whatsAppTemplateRef{
			Name:       msg.Name,
			Language:   templateLanguage{Code: lang},
			Components: msg.Components,
		},
	}
	return c.postWhatsApp(ctx, payload, msg.To)
}

func (c *Client) postWhatsApp(ctx context.Context, payload any, to string) (string, error) {
	path := fmt.Sprintf("/%s/messages", c.meta.WhatsAppPhoneNumberID)

	var result whatsAppSendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.meta.WhatsAppToken).
		SetBody(payload).
		SetResult(&result).
		Post(path)
	if err != nil {
		c.logger.Error("WhatsApp send request failed",
			zap.String("to", to),
			zap.Error(err))
		return "", fmt.Errorf("whatsapp send request failed: %w", err)
	}

	if resp.IsError() {
		apiErr := newAPIError(resp)
		c.logger.Warn("WhatsApp send rejected",
			zap.String("to", to),
			zap.Int("status_code", apiErr.StatusCode),
			zap.Int("code", apiErr.Code),
			zap.String("fbtrace_id", apiErr.FBTraceID))
		return "", apiErr
	}

	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		return "", ErrEmptyResponse
	}
	return result.Messages[0].ID, nil
}

// SendMessengerText posts a RESPONSE message through the page and returns its mid.
func (c *Client) SendMessengerText(ctx context.Context, recipientID, text string) (string, error) {
	payload := messengerSendRequest{
		Recipient:     messengerRecipient{ID: recipientID},
		MessagingType: "RESPONSE",
		Message:       messengerText{Text: text},
	}

	var result messengerSendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.meta.MessengerToken).
		SetBody(payload).
		SetResult(&result).
		Post("/me/messages")
	if err != nil {
		c.logger.Error("Messenger send request failed",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
		return "", fmt.Errorf("messenger send request failed: %w", err)
	}

	if resp.IsError() {
		apiErr := newAPIError(resp)
		c.logger.Warn("Messenger send rejected",
			zap.String("recipient_id", recipientID),
			zap.Int("status_code", apiErr.StatusCode),
			zap.Int("code", apiErr.Code),
			zap.String("fbtrace_id", apiErr.FBTraceID))
		return "", apiErr
	}

	if result.MessageID == "" {
		return "", ErrEmptyResponse
	}
	return result.MessageID, nil
}

// FetchTemplates returns the first page of the business account's template catalog.
func (c *Client) FetchTemplates(ctx context.Context) ([]Template, error) {
	path := fmt.Sprintf("/%s/message_templates", c.meta.WhatsAppBusinessAccountID)

	var result templateCatalogResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.meta.WhatsAppToken).
		SetQueryParam("limit", "100").
		SetResult(&result).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("template catalog request failed: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp)
	}

	c.logger.Debug("Fetched template catalog", zap.Int("count", len(result.Data)))
	return result.Data, nil
}

// ExchangeAppToken trades the app id and secret for an app access token.
func (c *Client) ExchangeAppToken(ctx context.Context) (*AppToken, error) {
	var result AppToken
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.meta.AppID,
			"client_secret": c.meta.AppSecret,
		}).
		SetResult(&result).
		Get("/oauth/access_token")
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned no access_token")
	}

	c.logger.Info("App access token renewed")
	return &result, nil
}
