package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	processPath      = "/process_video"
	fieldVideo       = "video"
	fieldDescription = "sceneDescription"
	maxErrorBody     = 64 * 1024
	pingTimeout      = 5 * time.Second
)

// HTTPClient is the Client for the HTTP scene search backend.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a client for baseURL. A zero timeout leaves requests
// bounded only by ctx, since processing a long clip can take minutes.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Search uploads video and description as multipart/form-data. The body is
// streamed, so the video is never held in memory.
func (c *HTTPClient) Search(ctx context.Context, video Upload, description string) (*Result, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, video, description))
	}()

	url := c.baseURL + processPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	c.logger.Info("sending scene search",
		"url", url,
		"request_id", requestID,
		"filename", video.Filename,
		"size", video.Size,
		"description_len", len(description),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// unblock the writer goroutine
		pr.CloseWithError(err)
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result Result
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		c.logger.Info("scene search answered",
			"request_id", requestID,
			"timestamp", result.TimestampRaw,
			"similarity", result.Similarity,
			"elapsed", time.Since(start),
		)
		return &result, nil
	}

	respErr := decodeError(resp)
	c.logger.Warn("scene search rejected",
		"request_id", requestID,
		"status", resp.StatusCode,
		"message", respErr.Message,
		"elapsed", time.Since(start),
	)
	return nil, respErr
}

func writeForm(mw *multipart.Writer, video Upload, description string) error {
	contentType := video.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldVideo, video.Filename))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create video part: %w", err)
	}
	if _, err := io.Copy(part, video.Body); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}
	if err := mw.WriteField(fieldDescription, description); err != nil {
		return fmt.Errorf("write description: %w", err)
	}
	return mw.Close()
}

func decodeError(resp *http.Response) *ResponseError {
	respErr := &ResponseError{StatusCode: resp.StatusCode}

	var body struct {
		Error      string  `json:"error"`
		Similarity float64 `json:"similarity"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, &body); err == nil {
		respErr.Message = body.Error
		respErr.Similarity = body.Similarity
	}

	if respErr.Message == "" {
		if respErr.NotFound() {
			respErr.Message = defaultNotFoundMessage
		} else {
			respErr.Message = defaultFailedMessage
		}
	}
	return respErr
}

// Ping checks that the backend answers HTTP at all. Any status code counts.
func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	return nil
}
