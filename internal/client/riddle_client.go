// Package client holds the HTTP and fixture-backed collaborators of the game:
// the riddle service, the word video lookup and the capture judge.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/model"
)

// maxResponseBytes caps upstream response bodies.
const maxResponseBytes = 1 << 20

// riddleWire is the upstream representation of a riddle.
type riddleWire struct {
	RiddleID  int    `json:"riddleId"`
	Question  string `json:"question"`
	TotalStep int    `json:"totalStep"`
}

// RiddleClient talks to the riddle service over HTTP.
type RiddleClient struct {
	baseURL string
	client  *http.Client
}

// NewRiddleClient creates a client for the service at baseURL. A nil client
// gets one bounded by timeout.
func NewRiddleClient(baseURL string, timeout time.Duration, client *http.Client) *RiddleClient {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &RiddleClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// FetchQuestionList requests total riddles of the given difficulty.
func (c *RiddleClient) FetchQuestionList(ctx context.Context, difficulty model.Difficulty, total int) ([]model.Riddle, error) {
	q := url.Values{}
	q.Set("difficulty", string(difficulty))
	q.Set("totalQuestion", strconv.Itoa(total))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get-words?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build question list request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var wire []riddleWire
	if err := json.Unmarshal(body, &wire); err != nil {
		// Some deployments wrap the list in a data envelope.
		var envelope struct {
			Data []riddleWire `json:"data"`
		}
		if envErr := json.Unmarshal(body, &envelope); envErr != nil {
			return nil, fmt.Errorf("%w: decode question list: %v", game.ErrTransport, err)
		}
		wire = envelope.Data
	}

	riddles := make([]model.Riddle, 0, len(wire))
	for _, w := range wire {
		riddles = append(riddles, model.Riddle{
			ID:         w.RiddleID,
			PromptText: w.Question,
			TotalSteps: w.TotalStep,
		})
	}
	return riddles, nil
}

// FetchStepPrompt requests the hint for one step of a riddle.
func (c *RiddleClient) FetchStepPrompt(ctx context.Context, riddleID, step int) (model.StepPrompt, error) {
	form := url.Values{}
	form.Set("riddleId", strconv.Itoa(riddleID))
	form.Set("step", strconv.Itoa(step))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/gameStart", strings.NewReader(form.Encode()))
	if err != nil {
		return model.StepPrompt{}, fmt.Errorf("build step prompt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return model.StepPrompt{}, err
	}

	var result struct {
		Guide string `json:"guide"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return model.StepPrompt{}, fmt.Errorf("%w: decode step prompt: %v", game.ErrTransport, err)
	}
	if result.Guide == "" {
		return model.StepPrompt{}, fmt.Errorf("%w: empty guide for riddle %d step %d", game.ErrTransport, riddleID, step)
	}

	return model.StepPrompt{RiddleID: riddleID, Step: step, Guide: result.Guide}, nil
}

// FetchWordVideo looks up a reference video for text.
func (c *RiddleClient) FetchWordVideo(ctx context.Context, text string) (model.WordVideo, error) {
	q := url.Values{}
	q.Set("wordDes", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get-video-link?"+q.Encode(), nil)
	if err != nil {
		return model.WordVideo{}, fmt.Errorf("build video request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return model.WordVideo{}, err
	}

	link, err := decodeVideoLink(body)
	if err != nil {
		return model.WordVideo{}, fmt.Errorf("%w: decode video link: %v", game.ErrTransport, err)
	}
	return model.WordVideo{Text: text, URL: link}, nil
}

// decodeVideoLink accepts either {"url": "..."} or a bare JSON string.
func decodeVideoLink(body []byte) (string, error) {
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &obj); err == nil && obj.URL != "" {
		return obj.URL, nil
	}

	var s string
	if err := json.Unmarshal(body, &s); err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("empty link")
	}
	return s, nil
}

func (c *RiddleClient) do(req *http.Request) ([]byte, error) {
	return doRequest(c.client, req)
}

// doRequest executes req and returns the body of a 2xx response. Every
// failure is an ErrTransport.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", game.ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", game.ErrTransport, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", game.ErrTransport, req.URL.Path, resp.Status)
	}
	return body, nil
}
