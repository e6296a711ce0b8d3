package memegen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"memeatlas/internal/logger"
	"memeatlas/internal/metrics"
	"memeatlas/models"
)

// MaxTemplates is how many templates of the Imgflip list are offered to the model.
const MaxTemplates = 100

type imgflipTemplatesResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Memes []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			BoxCount int    `json:"box_count"`
		} `json:"memes"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
}

type imgflipCaptionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
}

// ImgflipClient lists templates and renders captions through the Imgflip API.
type ImgflipClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

func NewImgflipClient(baseURL, username, password string, client *http.Client) *ImgflipClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ImgflipClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
	}
}

// Templates returns the first MaxTemplates templates of get_memes.
func (c *ImgflipClient) Templates(ctx context.Context) ([]models.MemeTemplate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_memes", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build imgflip request: %w", err)
	}

	var r imgflipTemplatesResponse
	if err := c.do(req, &r); err != nil {
		return nil, upstreamError("Failed to fetch meme templates", err)
	}
	if !r.Success {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgflip", "error").Inc()
		return nil, upstreamError("Failed to fetch meme templates", fmt.Errorf("imgflip: %s", r.ErrorMessage))
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("imgflip", "ok").Inc()

	memes := r.Data.Memes
	if len(memes) > MaxTemplates {
		memes = memes[:MaxTemplates]
	}
	templates := make([]models.MemeTemplate, 0, len(memes))
	for _, m := range memes {
		templates = append(templates, models.MemeTemplate{ID: m.ID, Name: m.Name, BoxCount: m.BoxCount})
	}
	return templates, nil
}

// Caption renders boxes onto a template and returns the image URL.
func (c *ImgflipClient) Caption(ctx context.Context, templateID string, boxes []string) (string, error) {
	form := url.Values{}
	form.Set("template_id", templateID)
	form.Set("username", c.username)
	form.Set("password", c.password)
	if len(boxes) <= 2 {
		form.Set("text0", boxAt(boxes, 0))
		form.Set("text1", boxAt(boxes, 1))
	} else {
		for i, text := range boxes {
			form.Set("boxes["+strconv.Itoa(i)+"][text]", text)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/caption_image", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build imgflip request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var r imgflipCaptionResponse
	if err := c.do(req, &r); err != nil {
		return "", upstreamError("Failed to generate meme", err)
	}
	if !r.Success {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgflip", "error").Inc()
		return "", upstreamError("Failed to generate meme. "+r.ErrorMessage, nil)
	}
	if r.Data.URL == "" {
		return "", malformedError("Imgflip response contained no image URL.")
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("imgflip", "ok").Inc()
	return r.Data.URL, nil
}

func (c *ImgflipClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgflip", "error").Inc()
		return err
	}
	defer resp.Body.Close()
	logger.L().Debug("imgflip_response", "path", req.URL.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgflip", "error").Inc()
		return &StatusError{Upstream: "imgflip", Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgflip", "error").Inc()
		return fmt.Errorf("failed to decode imgflip response: %w", err)
	}
	return nil
}

func boxAt(boxes []string, i int) string {
	if i < len(boxes) {
		return boxes[i]
	}
	return ""
}
