// Package botapi is a minimal chat Bot API client implementing
// domain.Transport: text and media sends, text edits and batch forwards.
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

const defaultAPIURL = "https://api.telegram.org"

// APIError is an unsuccessful Bot API answer.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Method, e.Code, e.Description)
}

type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type message struct {
	MessageID int `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// Client talks to the Bot API over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  types.Logger
	metrics types.Metrics
}

// New creates a client from cfg. A nil httpClient gets one with cfg.Timeout.
func New(cfg config.TransportConfig, httpClient *http.Client, logger types.Logger, metrics types.Metrics) *Client {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: apiURL + "/bot" + cfg.Token,
		client:  httpClient,
		logger:  logger,
		metrics: metrics,
	}
}

// Send delivers p to chatID.
func (c *Client) Send(ctx context.Context, chatID int64, p domain.Payload) (domain.ArtifactRef, error) {
	var (
		raw json.RawMessage
		err error
	)

	if p.Kind == domain.PayloadText || p.Kind == "" {
		raw, err = c.callJSON(ctx, "sendMessage", map[string]any{
			"chat_id": chatID,
			"text":    p.Text,
		})
	} else {
		raw, err = c.sendMedia(ctx, chatID, p)
	}
	if err != nil {
		return domain.ArtifactRef{}, err
	}

	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("failed to decode sent message: %w", err)
	}
	return domain.ArtifactRef{ChatID: chatID, MessageID: msg.MessageID}, nil
}

// Edit replaces the text of a message.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := c.callJSON(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
	return err
}

// Forward copies messageIDs from srcChatID to destChatID in one call.
func (c *Client) Forward(ctx context.Context, destChatID, srcChatID int64, messageIDs []int) ([]domain.ArtifactRef, error) {
	raw, err := c.callJSON(ctx, "forwardMessages", map[string]any{
		"chat_id":      destChatID,
		"from_chat_id": srcChatID,
		"message_ids":  messageIDs,
	})
	if err != nil {
		return nil, err
	}

	var ids []struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode forwarded messages: %w", err)
	}

	refs := make([]domain.ArtifactRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, domain.ArtifactRef{ChatID: destChatID, MessageID: id.MessageID})
	}
	return refs, nil
}

var mediaMethods = map[domain.PayloadKind]struct {
	method string
	field  string
}{
	domain.PayloadVideo:    {"sendVideo", "video"},
	domain.PayloadAudio:    {"sendAudio", "audio"},
	domain.PayloadPhoto:    {"sendPhoto", "photo"},
	domain.PayloadDocument: {"sendDocument", "document"},
}

func (c *Client) sendMedia(ctx context.Context, chatID int64, p domain.Payload) (json.RawMessage, error) {
	m, ok := mediaMethods[p.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported payload kind %q", p.Kind)
	}

	fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if p.Caption != "" {
		fields["caption"] = p.Caption
	}
	if p.Duration > 0 && (p.Kind == domain.PayloadVideo || p.Kind == domain.PayloadAudio) {
		fields["duration"] = strconv.Itoa(int(p.Duration / time.Second))
	}
	if p.Kind == domain.PayloadVideo {
		fields["supports_streaming"] = "true"
	}

	files := map[string]string{m.field: p.FilePath}
	if p.Thumbnail != "" && p.Kind != domain.PayloadPhoto {
		files["thumbnail"] = p.Thumbnail
	}

	body, contentType := multipartBody(fields, files)
	defer body.Close()

	return c.call(ctx, m.method, body, contentType)
}

// multipartBody streams the form so large files are never held in memory.
func multipartBody(fields, files map[string]string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, fields, files)
		if cErr := mw.Close(); err == nil {
			err = cErr
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, fields, files map[string]string) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	for field, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", field, err)
		}
		part, err := mw.CreateFormFile(field, filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", field, err)
		}
	}
	return nil
}

func (c *Client) callJSON(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	return c.call(ctx, method, bytes.NewReader(data), "application/json")
}

func (c *Client) call(ctx context.Context, method string, body io.Reader, contentType string) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordDuration("botapi."+method, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordError("botapi."+method, "network")
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		c.metrics.RecordError("botapi."+method, "decode")
		return nil, fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if r.OK {
		c.metrics.RecordSuccess("botapi." + method)
		return r.Result, nil
	}

	apiErr := mapError(method, r)
	c.metrics.RecordError("botapi."+method, strconv.Itoa(r.ErrorCode))
	c.logger.Debug(ctx, "Bot API call failed", types.Fields{
		"method":      method,
		"error_code":  r.ErrorCode,
		"description": r.Description,
	})
	return nil, apiErr
}

// mapError turns well-known answers into domain errors.
func mapError(method string, r response) error {
	desc := strings.ToLower(r.Description)

	switch {
	case r.ErrorCode == http.StatusTooManyRequests:
		retryAfter := time.Second
		if r.Parameters != nil && r.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(r.Parameters.RetryAfter) * time.Second
		}
		return &domain.RateLimitError{RetryAfter: retryAfter}
	case strings.Contains(desc, "message is not modified"):
		return domain.ErrMessageNotModified
	case strings.Contains(desc, "message to edit not found"),
		strings.Contains(desc, "message to forward not found"),
		strings.Contains(desc, "message can't be edited"):
		return domain.ErrMessageGone
	}
	return &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
}
