package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/realtime"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const subscriptionBuffer = 32

// SubscribeCollection follows every ticket visible to the token holder.
func (c *Client) SubscribeCollection(ctx context.Context) (*realtime.Subscription, error) {
	return c.subscribe(ctx, "/api/events")
}

// SubscribeTicket follows one ticket. An unknown or invisible ticket fails
// with NOT_FOUND before any stream is opened.
func (c *Client) SubscribeTicket(ctx context.Context, ticketID string) (*realtime.Subscription, error) {
	return c.subscribe(ctx, ticketPath(ticketID)+"/events")
}

// subscribe opens an event stream. The stream ends when ctx ends, when the
// subscription is closed or when the server hangs up; in every case the
// subscription channel is closed.
func (c *Client) subscribe(ctx context.Context, path string) (*realtime.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, apperrors.NewInternalError(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, apperrors.NewBackendError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer cancel()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, decodeError(resp.StatusCode, body)
	}

	sub := realtime.NewSubscription(subscriptionBuffer, cancel)
	go c.pump(resp.Body, sub, path)
	return sub, nil
}

func (c *Client) pump(body io.ReadCloser, sub *realtime.Subscription, path string) {
	defer sub.Close()
	defer body.Close()

	frames := realtime.NewFrameReader(body)
	for {
		frame, err := frames.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				c.logger.Debug("event stream ended", zap.String("path", path), zap.Error(err))
			}
			return
		}
		var payload dto.NotificationResponse
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			c.logger.Warn("undecodable event", zap.String("path", path), zap.Error(fmt.Errorf("%s: %w", frame.Event, err)))
			continue
		}
		if !sub.Send(payload.Domain()) {
			return
		}
	}
}
