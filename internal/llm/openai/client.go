package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/entity"
	"github.com/factura-labs/invoice-pipeline/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only
// chat/completions with a JSON response-format constraint.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (entity.InvoiceFields, llm.Usage, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	sys, user := llm.BuildPrompts(req.CleanedText)

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.CleanedText),
		"filename", req.Filename,
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"top_p":           0.9,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": user},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.InvoiceFields{}, llm.Usage{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.InvoiceFields{}, llm.Usage{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.InvoiceFields{}, llm.Usage{}, raw, fmt.Errorf("no choices in openai response")
	}
	usage := llm.Usage{TotalTokens: cc.Usage.TotalTokens}
	content := []byte(llm.StripFences(cc.Choices[0].Message.Content))

	// Parse, then validate against the invoice schema.
	var probe any
	if err := json.Unmarshal(content, &probe); err != nil {
		c.logger.Error("llm.extract.invalid_json",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.InvoiceFields{}, usage, content, common.LLMExtractionError("invalid JSON response", err)
	}
	if missing, err := llm.CheckRequiredKeys(content); err != nil || len(missing) > 0 {
		c.logger.Error("llm.extract.schema_mismatch",
			"req_id", rid, "missing", missing,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.InvoiceFields{}, usage, content,
			common.LLMExtractionError("schema mismatch", fmt.Errorf("missing keys: %s", strings.Join(missing, ", ")))
	}
	if err := llm.ValidateJSONAgainstSchema(llm.BuildInvoiceJSONSchema(), content); err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.InvoiceFields{}, usage, content, common.LLMExtractionError("schema mismatch", err)
	}

	var out entity.InvoiceFields
	if err := json.Unmarshal(content, &out); err != nil {
		return entity.InvoiceFields{}, usage, content, common.LLMExtractionError("invalid JSON response", err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"tokens", usage.TotalTokens,
		"items", len(out.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, usage, content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}
