package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/model"
)

// JudgeClient submits captured frames to the judging service.
type JudgeClient struct {
	endpoint string
	client   *http.Client
}

// NewJudgeClient creates a client that posts to {baseURL}/check-correct.
func NewJudgeClient(baseURL string, timeout time.Duration, client *http.Client) *JudgeClient {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &JudgeClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/check-correct",
		client:   client,
	}
}

// SubmitCapture uploads the artifact and reports whether it shows the
// expected sign for its riddle and step.
func (c *JudgeClient) SubmitCapture(ctx context.Context, artifact model.CaptureArtifact) (bool, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="capture.jpg"`)
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return false, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(artifact.Payload); err != nil {
		return false, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.WriteField("riddle_id", strconv.Itoa(artifact.RiddleID)); err != nil {
		return false, fmt.Errorf("write riddle_id: %w", err)
	}
	if err := mw.WriteField("current_step", strconv.Itoa(artifact.Step)); err != nil {
		return false, fmt.Errorf("write current_step: %w", err)
	}
	if err := mw.Close(); err != nil {
		return false, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return false, fmt.Errorf("build judge request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := doRequest(c.client, req)
	if err != nil {
		return false, err
	}

	var result struct {
		IsCorrect *bool `json:"isCorrect"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("%w: decode verdict: %v", game.ErrTransport, err)
	}
	if result.IsCorrect == nil {
		return false, fmt.Errorf("%w: verdict missing isCorrect", game.ErrTransport)
	}
	return *result.IsCorrect, nil
}
