// Package client talks to the helpdesk API over HTTP. It implements the
// store backend and follows server-sent change events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	defaultTimeout = 15 * time.Second
	mimeJSON       = "application/json"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger

	http   *fasthttp.Client
	stream *http.Client

	mu    sync.RWMutex
	token string
}

// Session is a signed-in identity.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Profile   domain.Profile
}

// Actor returns the identity operations are performed as.
func (s Session) Actor() domain.Actor {
	return s.Profile.Actor()
}

// New creates a client for the API rooted at cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		logger:  logger,
		http: &fasthttp.Client{
			Name:                "helpdesk-client",
			MaxIdleConnDuration: time.Minute,
		},
		stream: &http.Client{},
		token:  cfg.Token,
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates a customer account and keeps its token.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var resp dto.AuthResponse
	req := dto.UserRegisterRequest{Name: name, Email: email, Password: password}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	return c.session(resp), nil
}

// Login signs in and keeps the token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp dto.AuthResponse
	req := dto.UserLoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	return c.session(resp), nil
}

func (c *Client) session(resp dto.AuthResponse) *Session {
	c.SetToken(resp.Token)
	return &Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, Profile: resp.Profile.Domain()}
}

// Me returns the profile behind the current token.
func (c *Client) Me(ctx context.Context) (*domain.Profile, error) {
	var resp dto.ProfileResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	profile := resp.Domain()
	return &profile, nil
}

// Agents lists staff profiles. Staff only.
func (c *Client) Agents(ctx context.Context) ([]domain.Profile, error) {
	var resp []dto.ProfileResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/agents", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Profile, len(resp))
	for i := range resp {
		out[i] = resp[i].Domain()
	}
	return out, nil
}

// ListTickets returns the tickets matching f visible to the token holder.
func (c *Client) ListTickets(ctx context.Context, actor domain.Actor, f filter.Filter, s filter.Sort, p filter.Page) ([]domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var resp []dto.TicketResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/tickets", ListQuery(f, s, p), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Ticket, len(resp))
	for i := range resp {
		out[i] = resp[i].Domain()
	}
	return out, nil
}

// GetTicket returns one ticket with its relations.
func (c *Client) GetTicket(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var resp dto.TicketResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, ticketPath(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	ticket := resp.Domain()
	return &ticket, nil
}

// CreateTicket submits a new ticket.
func (c *Client) CreateTicket(ctx context.Context, actor domain.Actor, draft domain.TicketDraft) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var resp dto.TicketResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/tickets", nil, dto.NewCreateTicketRequest(draft), &resp); err != nil {
		return nil, err
	}
	ticket := resp.Domain()
	return &ticket, nil
}

// UpdateTicket sends a partial update.
func (c *Client) UpdateTicket(ctx context.Context, actor domain.Actor, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var resp dto.TicketResponse
	if err := c.doJSON(ctx, fasthttp.MethodPatch, ticketPath(id), nil, dto.NewUpdateTicketRequest(patch), &resp); err != nil {
		return nil, err
	}
	ticket := resp.Domain()
	return &ticket, nil
}

// DeleteTicket removes a ticket. Staff only.
func (c *Client) DeleteTicket(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return c.doJSON(ctx, fasthttp.MethodDelete, ticketPath(id), nil, nil, nil)
}

// RateTicket records the owner's satisfaction score.
func (c *Client) RateTicket(ctx context.Context, actor domain.Actor, id string, score int, feedback *string) (*domain.TicketRating, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var resp dto.RatingResponse
	req := dto.RateTicketRequest{Rating: score, Feedback: feedback}
	if err := c.doJSON(ctx, fasthttp.MethodPut, ticketPath(id)+"/rating", nil, req, &resp); err != nil {
		return nil, err
	}
	rating := resp.Domain()
	return &rating, nil
}

// Stats returns the dashboard counters for the token holder.
func (c *Client) Stats(ctx context.Context, actor domain.Actor) (domain.TicketStats, error) {
	if err := requireActor(actor); err != nil {
		return domain.TicketStats{}, err
	}
	var resp dto.StatsResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/tickets/stats", nil, nil, &resp); err != nil {
		return domain.TicketStats{}, err
	}
	return resp.Domain(), nil
}

// AddComment posts a comment. With files the request is multipart.
func (c *Client) AddComment(ctx context.Context, actor domain.Actor, ticketID, content string, internal bool, files []domain.Upload) (*domain.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	path := ticketPath(ticketID) + "/comments"
	var resp dto.CommentResponse
	if len(files) == 0 {
		req := map[string]any{"content": content, "is_internal": internal}
		if err := c.doJSON(ctx, fasthttp.MethodPost, path, nil, req, &resp); err != nil {
			return nil, err
		}
	} else {
		fields := map[string]string{"content": content, "is_internal": strconv.FormatBool(internal)}
		body, contentType, err := multipartBody(fields, "files", files)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
		if err := c.do(ctx, fasthttp.MethodPost, path, nil, contentType, body, &resp); err != nil {
			return nil, err
		}
	}
	comment := resp.Domain()
	return &comment, nil
}

// AttachToTicket uploads one file directly to a ticket.
func (c *Client) AttachToTicket(ctx context.Context, actor domain.Actor, ticketID string, file domain.Upload) (*domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	body, contentType, err := multipartBody(nil, "file", []domain.Upload{file})
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	var resp dto.AttachmentResponse
	if err := c.do(ctx, fasthttp.MethodPost, ticketPath(ticketID)+"/attachments", nil, contentType, body, &resp); err != nil {
		return nil, err
	}
	attachment := resp.Domain()
	return &attachment, nil
}

// ListTags returns the tag catalog.
func (c *Client) ListTags(ctx context.Context, actor domain.Actor) ([]domain.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var resp []dto.TagResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/tags", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Tag, len(resp))
	for i := range resp {
		out[i] = resp[i].Domain()
	}
	return out, nil
}

// CreateTag adds a tag to the catalog.
func (c *Client) CreateTag(ctx context.Context, actor domain.Actor, name, color string) (*domain.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var resp dto.TagResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/tags", nil, dto.CreateTagRequest{Name: name, Color: color}, &resp); err != nil {
		return nil, err
	}
	tag := resp.Domain()
	return &tag, nil
}

// AddTagToTicket labels a ticket.
func (c *Client) AddTagToTicket(ctx context.Context, actor domain.Actor, ticketID, tagID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return c.doJSON(ctx, fasthttp.MethodPut, ticketPath(ticketID)+"/tags/"+url.PathEscape(tagID), nil, nil, nil)
}

// RemoveTagFromTicket unlabels a ticket.
func (c *Client) RemoveTagFromTicket(ctx context.Context, actor domain.Actor, ticketID, tagID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return c.doJSON(ctx, fasthttp.MethodDelete, ticketPath(ticketID)+"/tags/"+url.PathEscape(tagID), nil, nil, nil)
}

// ListQuery encodes list controls the way the API parses them.
func ListQuery(f filter.Filter, s filter.Sort, p filter.Page) url.Values {
	f = f.Normalize()
	s = s.Normalize()
	q := url.Values{}
	if f.Search != nil {
		q.Set("search", *f.Search)
	}
	if len(f.Statuses) > 0 {
		q.Set("status", joinValues(f.Statuses))
	}
	if len(f.Priorities) > 0 {
		q.Set("priority", joinValues(f.Priorities))
	}
	if len(f.Assignees) > 0 {
		q.Set("assignee", strings.Join(f.Assignees, ","))
	}
	if len(f.Tags) > 0 {
		q.Set("tags", strings.Join(f.Tags, ","))
	}
	if f.CreatedFrom != nil {
		q.Set("created_from", f.CreatedFrom.UTC().Format(time.RFC3339Nano))
	}
	if f.CreatedTo != nil {
		q.Set("created_to", f.CreatedTo.UTC().Format(time.RFC3339Nano))
	}
	q.Set("sort", string(s.Field))
	q.Set("order", string(s.Direction))
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

func ticketPath(id string) string {
	return "/api/tickets/" + url.PathEscape(id)
}

func requireActor(actor domain.Actor) error {
	if !actor.Authenticated() {
		return apperrors.NewUnauthorized("sign in required")
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	contentType := ""
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		body, contentType = encoded, mimeJSON
	}
	return c.do(ctx, method, path, query, contentType, body, out)
}

// do sends one request and decodes the {"data": ...} envelope into out.
// Error envelopes become domain errors with the server's code; transport
// failures become BACKEND_ERROR.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body []byte, out any) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewBackendError(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req.SetRequestURI(target)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, mimeJSON)
	if token := c.Token(); token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if contentType != "" {
		req.Header.SetContentType(contentType)
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperrors.NewBackendError(err)
	}

	status := resp.StatusCode()
	if status >= fasthttp.StatusBadRequest {
		return decodeError(status, resp.Body())
	}
	if out == nil || status == fasthttp.StatusNoContent {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return apperrors.NewBackendError(fmt.Errorf("decode response: %w", err))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return apperrors.NewBackendError(fmt.Errorf("decode response data: %w", err))
	}
	return nil
}

type errorEnvelope struct {
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(status int, body []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil || envelope.Error.Code == "" {
		return apperrors.NewBackendError(fmt.Errorf("unexpected status %d", status))
	}
	e := envelope.Error
	return apperrors.NewDomainError(e.Code, e.Message, status, e.Details)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(fields map[string]string, fileField string, files []domain.Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	for _, file := range files {
		if file.Filename == "" {
			return nil, "", errors.New("file name is required")
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(fileField), quoteEscaper.Replace(file.Filename)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
