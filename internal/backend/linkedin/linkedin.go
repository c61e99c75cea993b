// Package linkedin publishes posts through the LinkedIn UGC API.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/request"
)

const (
	defaultBaseURL = "https://api.linkedin.com"
	ugcPostsPath   = "/v2/ugcPosts"

	restliHeader  = "X-Restli-Protocol-Version"
	restliVersion = "2.0.0"
	postIDHeader  = "x-restli-id"

	successMessage = "Successfully created post on LinkedIn"
)

// Config holds configuration for the LinkedIn poster.
type Config struct {
	AccessToken string
	AuthorURN   string
	BaseURL     string
	HTTPClient  *http.Client
}

// Poster publishes text shares as the configured author. Publishing
// completes synchronously, so Submit always returns an immediate result.
type Poster struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	authorURN   string
}

// NewPoster creates a new LinkedIn poster.
func NewPoster(cfg Config) (*Poster, error) {
	if cfg.AccessToken == "" {
		return nil, apperrors.Configuration("LINKEDIN_ACCESS_TOKEN")
	}
	if cfg.AuthorURN == "" {
		return nil, apperrors.Configuration("LINKEDIN_AUTHOR_URN")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = backend.NewHTTPClient()
	}

	return &Poster{
		httpClient:  client,
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		authorURN:   cfg.AuthorURN,
	}, nil
}

// Name returns the adapter name.
func (p *Poster) Name() string {
	return "linkedin.post"
}

// ugcPost is the request body for creating a share.
type ugcPost struct {
	Author          string          `json:"author"`
	LifecycleState  string          `json:"lifecycleState"`
	SpecificContent specificContent `json:"specificContent"`
	Visibility      visibility      `json:"visibility"`
}

type specificContent struct {
	ShareContent shareContent `json:"com.linkedin.ugc.ShareContent"`
}

type shareContent struct {
	ShareCommentary    shareCommentary `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
}

type shareCommentary struct {
	Text string `json:"text"`
}

type visibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

func newUGCPost(author, text string) ugcPost {
	return ugcPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: specificContent{
			ShareContent: shareContent{
				ShareCommentary:    shareCommentary{Text: text},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: visibility{MemberNetworkVisibility: "PUBLIC"},
	}
}

// Submit publishes the post.
func (p *Poster) Submit(ctx context.Context, req request.Request) (backend.Submission, error) {
	const op = "linkedin.post.submit"

	post, ok := req.(request.Post)
	if !ok {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("unsupported request schema"))
	}

	body, err := json.Marshal(newUGCPost(p.authorURN, post.Text()))
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+ugcPostsPath, bytes.NewReader(body))
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(restliHeader, restliVersion)

	header, _, err := backend.Do(p.httpClient, httpReq)
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, err)
	}

	postID := header.Get(postIDHeader)
	if postID == "" {
		postID = "Unknown"
	}

	slog.Info("posted to LinkedIn", "post_id", postID)

	return backend.Immediate(backend.Payload{
		"status":  "success",
		"message": successMessage,
		"post_id": postID,
	}), nil
}

// PollStatus is not applicable.
func (p *Poster) PollStatus(ctx context.Context, h backend.Handle) (backend.Status, error) {
	return backend.Status{}, apperrors.Adapter("linkedin.post.poll", fmt.Errorf("posts are published synchronously"))
}

// FetchResult is not applicable.
func (p *Poster) FetchResult(ctx context.Context, h backend.Handle) (backend.Payload, error) {
	return nil, apperrors.Adapter("linkedin.post.fetch", fmt.Errorf("posts are published synchronously"))
}
