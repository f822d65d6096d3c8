package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/volt-test/volt/internal/model"
)

const (
	uploadPath  = "api/v1/results"
	contentType = "application/json"
	jobHeader   = "X-Volt-Job"
)

// HTTPUploader posts records to a results repository.
type HTTPUploader struct {
	requestURL model.URL
	token      string
	client     *http.Client
}

func NewHTTPUploader(serverURL string, auth model.Auth) (*HTTPUploader, error) {
	parsed, err := model.ParseURL(serverURL)
	if err != nil {
		return nil, err
	}
	if strings.Trim(parsed.Path, "/") != "" {
		return nil, errors.New("please define the server url with a scheme and without path, e.g. `http://some-url.com`")
	}

	c := &HTTPUploader{
		requestURL: parsed.JoinPath(uploadPath),
		client:     &http.Client{},
	}
	switch auth.Type {
	case "", model.AuthTypeNone:
	case model.AuthTypeStaticToken:
		if auth.Token == "" {
			return nil, errors.New("static_token auth requires a token")
		}
		c.token = auth.Token
	default:
		return nil, fmt.Errorf("unsupported auth type %q", auth.Type)
	}
	return c, nil
}

// WithClient replaces the http client, e.g. by an httptest server client.
func (c *HTTPUploader) WithClient(client *http.Client) *HTTPUploader {
	c.client = client
	return c
}

func (c *HTTPUploader) Upload(ctx context.Context, job string, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL.String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(jobHeader, job)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	createResp, err := decodeUploadResponse(resp)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "report uploaded successfully.",
		slog.String("job", job),
		slog.String("id", createResp.ID))
	return nil
}

type CreateResponse struct {
	ID string `json:"id"`
}

func decodeUploadResponse(resp *http.Response) (CreateResponse, error) {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil && resp.StatusCode == http.StatusCreated {
		return CreateResponse{}, fmt.Errorf("failed to parse response content type header: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		if mediaType != "application/json" {
			return CreateResponse{}, fmt.Errorf("expected `application/json` content type, got: %s", mediaType)
		}
		var cr CreateResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return CreateResponse{}, fmt.Errorf("decoding json response failed: %w", err)
		}
		if cr.ID == "" {
			return CreateResponse{}, errors.New("received unexpected body")
		}
		return cr, nil

	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict, http.StatusUnsupportedMediaType:
		if mediaType != "application/problem+json" {
			break
		}
		var problemDetail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&problemDetail); err != nil {
			return CreateResponse{}, fmt.Errorf("decoding json response failed: %w", err)
		}
		return CreateResponse{}, fmt.Errorf("status code: %d, detail: %s", resp.StatusCode, problemDetail.Detail)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return CreateResponse{}, err
	}
	return CreateResponse{}, fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}
