// Package api is the typed client for the shopping-list backend: list
// CRUD, voice-command interpretation, transcription and suggestions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"shopvox/log"
	"shopvox/shopping"
)

const DefaultBaseURL = "http://localhost:5000/api"

// noSpeech is the backend's transcription error for silent audio.
const noSpeech = "no speech detected"

type Client struct {
	baseURL string
	http    *TracedClient
}

func New(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: need http(s)://host", baseURL)
	}
	return &Client{baseURL: baseURL, http: NewTracedClient()}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

type AddRequest struct {
	ItemName string  `json:"item_name" validate:"required,max=200"`
	Category string  `json:"category,omitempty"`
	Quantity float64 `json:"quantity,omitempty" validate:"gte=0"`
	Unit     string  `json:"unit,omitempty"`
}

// UpdateRequest carries only the fields being changed.
type UpdateRequest struct {
	Quantity *float64 `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Category *string  `json:"category,omitempty"`
	Unit     *string  `json:"unit,omitempty"`
}

type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type DatasetResult struct {
	Message    string `json:"message"`
	RulesCount int    `json:"rules_count"`
}

func (c *Client) List(ctx context.Context) ([]shopping.Item, error) {
	var resp struct {
		Items []shopping.Item `json:"items"`
	}
	if err := c.doJSON(ctx, "list items", http.MethodGet, "/shopping/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) Add(ctx context.Context, req AddRequest) (shopping.Item, error) {
	req.ItemName = strings.TrimSpace(req.ItemName)
	if err := validateRequest("add item", req); err != nil {
		return shopping.Item{}, err
	}
	var resp struct {
		Item shopping.Item `json:"item"`
	}
	if err := c.doJSON(ctx, "add item", http.MethodPost, "/shopping/add", req, &resp); err != nil {
		return shopping.Item{}, err
	}
	if resp.Item.ID == "" {
		return shopping.Item{}, &NetworkError{Op: "add item", Err: errors.New("response has no item id")}
	}
	return resp.Item, nil
}

func (c *Client) Remove(ctx context.Context, id shopping.ItemID) error {
	return c.doJSON(ctx, "remove item", http.MethodDelete, "/shopping/"+url.PathEscape(id.String()), nil, nil)
}

func (c *Client) Complete(ctx context.Context, id shopping.ItemID) error {
	return c.doJSON(ctx, "complete item", http.MethodPut, "/shopping/"+url.PathEscape(id.String())+"/complete", nil, nil)
}

func (c *Client) Update(ctx context.Context, id shopping.ItemID, req UpdateRequest) (shopping.Item, error) {
	if err := validateRequest("update item", req); err != nil {
		return shopping.Item{}, err
	}
	var resp struct {
		Item shopping.Item `json:"item"`
	}
	if err := c.doJSON(ctx, "update item", http.MethodPut, "/shopping/"+url.PathEscape(id.String()), req, &resp); err != nil {
		return shopping.Item{}, err
	}
	if resp.Item.ID == "" {
		resp.Item.ID = id
	}
	return resp.Item, nil
}

// Interpret asks the backend to turn free text into a command. lang is a
// hint; older backends ignore it.
func (c *Client) Interpret(ctx context.Context, text, lang string) (shopping.Command, error) {
	req := struct {
		Text     string `json:"text"`
		Language string `json:"language,omitempty"`
	}{Text: text, Language: lang}
	var cmd shopping.Command
	if err := c.doJSON(ctx, "interpret command", http.MethodPost, "/voice/process", req, &cmd); err != nil {
		return shopping.Command{}, err
	}
	cmd.Kind = shopping.CommandKind(strings.ToLower(strings.TrimSpace(string(cmd.Kind))))
	return cmd, nil
}

// Transcribe uploads one recorded segment. Silence is not an error: the
// result simply has no text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, lang string) (Transcription, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return Transcription{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return Transcription{}, err
	}
	if lang != "" {
		if err := writer.WriteField("language", lang); err != nil {
			return Transcription{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return Transcription{}, err
	}

	var t Transcription
	err = c.do(ctx, "transcribe audio", http.MethodPost, "/voice/transcribe", &body, writer.FormDataContentType(), &t)
	var ne *NetworkError
	if errors.As(err, &ne) && ne.Status == http.StatusBadRequest && strings.EqualFold(ne.Err.Error(), noSpeech) {
		return Transcription{}, nil
	}
	if err != nil {
		return Transcription{}, err
	}
	t.Text = strings.TrimSpace(t.Text)
	return t, nil
}

func (c *Client) Languages(ctx context.Context) (map[string]string, error) {
	var resp struct {
		Languages map[string]string `json:"languages"`
	}
	if err := c.doJSON(ctx, "list languages", http.MethodGet, "/voice/languages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Languages, nil
}

func (c *Client) Suggestions(ctx context.Context) ([]shopping.Suggestion, error) {
	var resp struct {
		Suggestions []shopping.Suggestion `json:"suggestions"`
	}
	if err := c.doJSON(ctx, "get suggestions", http.MethodGet, "/suggestions/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

func (c *Client) History(ctx context.Context) ([]shopping.HistoryEntry, error) {
	var resp struct {
		History []shopping.HistoryEntry `json:"history"`
	}
	if err := c.doJSON(ctx, "get history", http.MethodGet, "/suggestions/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// UploadDataset sends a CSV or JSON transaction file used to train the
// backend's association-rule suggestions.
func (c *Client) UploadDataset(ctx context.Context, filename string, r io.Reader) (DatasetResult, error) {
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".json") {
		return DatasetResult{}, fmt.Errorf("upload dataset: %w: file must be .csv or .json", ErrInvalidRequest)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return DatasetResult{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return DatasetResult{}, fmt.Errorf("upload dataset: %w", err)
	}
	if err := writer.Close(); err != nil {
		return DatasetResult{}, err
	}

	var res DatasetResult
	if err := c.do(ctx, "upload dataset", http.MethodPost, "/suggestions/apriori/upload", &body, writer.FormDataContentType(), &res); err != nil {
		return DatasetResult{}, err
	}
	return res, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	entry := log.Request{Method: method, Path: path, RequestID: requestID, Err: err}
	if resp != nil {
		m := resp.Metrics
		entry.Status = resp.StatusCode
		entry.DNSMs = float64(m.DNS.Microseconds()) / 1000
		entry.TLSMs = float64(m.TLS.Microseconds()) / 1000
		entry.TTFBMs = float64(m.TTFB.Microseconds()) / 1000
		entry.TotalMs = float64(m.Total.Microseconds()) / 1000
		entry.ConnReused = m.ConnReused
	}
	log.HTTPRequest(entry)

	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: errors.New(serverMessage(resp.Body))}
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
