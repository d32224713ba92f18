package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bluesky-social/kyupikon/platform"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

// Returned when the server ends the stream with a disconnect notice.
var ErrDisconnected = errors.New("stream disconnected by server")

const (
	KindStatus     = "status"
	KindFollow     = "follow"
	KindError      = "error"
	KindDisconnect = "disconnect"
	KindWarning    = "warning"
)

// Lifecycle notice sent by the stream server.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// One frame of the stream.
type Envelope struct {
	Kind   string               `json:"kind"`
	Status *platform.StatusView `json:"status,omitempty"`
	Follow *platform.FollowView `json:"follow,omitempty"`
	Notice *Notice              `json:"notice,omitempty"`
}

type StreamCallbacks struct {
	Status func(ctx context.Context, msg *platform.Message) error
	Follow func(ctx context.Context, evt *platform.FollowEvent) error
}

type Consumer struct {
	Logger *slog.Logger
	// stream server; scheme optional
	Host       string
	SelfHandle string
	// optional; each dial sends the current token as a bearer Authorization header
	TokenSource oauth2.TokenSource
	Dialer      *websocket.Dialer
	Callbacks   StreamCallbacks
}

// Takes a "host" string and returns an appropriate websocket URL. Defaults to wss://, except
// for localhost. Converts http/https to ws/wss.
func WebsocketURLForHost(host string) string {
	switch {
	case host == "":
		return ""
	case strings.HasPrefix(host, "wss://"), strings.HasPrefix(host, "ws://"):
		return host
	case strings.HasPrefix(host, "https://"):
		return "wss://" + strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		return "ws://" + strings.TrimPrefix(host, "http://")
	case strings.Contains(host, "://"):
		// don't mess with unexpected schemes
		return host
	case strings.HasPrefix(host, "127.0.0."), strings.HasPrefix(host, "[::1]"):
		return "ws://" + host
	}
	if strings.SplitN(host, ":", 2)[0] == "localhost" {
		return "ws://" + host
	}
	return "wss://" + host
}

func (c *Consumer) StreamURL() string {
	return strings.TrimSuffix(WebsocketURLForHost(c.Host), "/") + "/v1/stream"
}

// Connects to the stream and handles events until the context is cancelled or the connection
// fails. There is no cursor: events missed while disconnected are not replayed.
func (c *Consumer) Run(ctx context.Context) error {
	u := c.StreamURL()
	logger := c.Logger.With("url", u)

	header := http.Header{}
	header.Set("User-Agent", "kyupikon")
	if c.TokenSource != nil {
		tok, err := c.TokenSource.Token()
		if err != nil {
			return fmt.Errorf("fetching stream token: %w", err)
		}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger.Info("subscribing to stream")
	con, resp, err := dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dialing stream (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dialing stream: %w", err)
	}
	streamConnects.Inc()
	defer con.Close()

	return HandleStream(ctx, con, c.SelfHandle, &c.Callbacks, logger)
}

// Reads frames from an open stream connection and dispatches them strictly in order; each
// event is handled to completion before the next frame is read. Handler errors are logged and
// the stream continues.
func HandleStream(ctx context.Context, con *websocket.Conn, selfHandle string, cb *StreamCallbacks, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		t := time.NewTicker(time.Second * 30)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				if err := con.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second*10)); err != nil {
					logger.Warn("failed to ping", "err", err)
				}
			case <-ctx.Done():
				con.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		mt, data, err := con.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading stream: %w", err)
		}
		if mt != websocket.TextMessage {
			return fmt.Errorf("expected text message from stream endpoint")
		}
		streamBytes.Add(float64(len(data)))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// a single bad frame is not fatal
			logger.Warn("failed to parse stream frame", "err", err)
			streamEvents.WithLabelValues("invalid").Inc()
			continue
		}
		if env.Kind == "" {
			env.Kind = "unknown"
		}
		streamEvents.WithLabelValues(env.Kind).Inc()

		// an event that has started is handled to completion, even if the stream is torn down
		if err := dispatch(context.WithoutCancel(ctx), &env, selfHandle, cb, logger); err != nil {
			return err
		}
	}
}

func dispatch(ctx context.Context, env *Envelope, selfHandle string, cb *StreamCallbacks, logger *slog.Logger) error {
	switch env.Kind {
	case KindStatus:
		if env.Status == nil {
			logger.Warn("status frame without status")
			return nil
		}
		msg := env.Status.Message(selfHandle)
		if cb.Status != nil {
			if err := cb.Status(ctx, &msg); err != nil {
				logger.Error("failed to handle status", "msg_id", msg.ID, "err", err)
			}
		}
	case KindFollow:
		if env.Follow == nil {
			logger.Warn("follow frame without follow")
			return nil
		}
		evt := env.Follow.FollowEvent()
		if cb.Follow != nil {
			if err := cb.Follow(ctx, &evt); err != nil {
				logger.Error("failed to handle follow", "source", evt.Source.Handle, "err", err)
			}
		}
	case KindError, KindWarning:
		n := env.noticeOrEmpty()
		logger.Warn("stream notice", "kind", env.Kind, "code", n.Code, "message", n.Message)
	case KindDisconnect:
		n := env.noticeOrEmpty()
		logger.Warn("stream disconnect notice", "code", n.Code, "message", n.Message)
		return fmt.Errorf("%w: %s %s", ErrDisconnected, n.Code, n.Message)
	default:
		logger.Debug("ignoring stream frame", "kind", env.Kind)
	}
	return nil
}

func (env *Envelope) noticeOrEmpty() Notice {
	if env.Notice == nil {
		return Notice{}
	}
	return *env.Notice
}
