package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/teslashibe/go-livetranslate/internal/httpc"
	"github.com/teslashibe/go-livetranslate/pkg/pcm"
)

const (
	// GeminiLiveURL is the Gemini Live API WebSocket endpoint.
	GeminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the default model for Gemini Live.
	DefaultModel = "models/gemini-2.0-flash-exp"

	// DefaultVoice is the default prebuilt voice.
	DefaultVoice = "Kore"

	defaultSetupTimeout = 10 * time.Second
)

// Gemini dials sessions against the Gemini Live API. It authenticates with
// an API key or, when configured, an OAuth2 token source.
type Gemini struct {
	apiKey       string
	tokens       oauth2.TokenSource
	endpoint     string
	setupTimeout time.Duration
	logger       *slog.Logger
	dialer       *websocket.Dialer
}

// GeminiOption configures a Gemini dialer.
type GeminiOption func(*Gemini)

// WithTokenSource authenticates with bearer tokens instead of an API key.
func WithTokenSource(ts oauth2.TokenSource) GeminiOption {
	return func(g *Gemini) { g.tokens = ts }
}

// WithEndpoint overrides the websocket endpoint.
func WithEndpoint(endpoint string) GeminiOption {
	return func(g *Gemini) {
		if endpoint != "" {
			g.endpoint = endpoint
		}
	}
}

// WithSetupTimeout bounds the wait for the server's setup acknowledgement.
func WithSetupTimeout(d time.Duration) GeminiOption {
	return func(g *Gemini) { g.setupTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(g *Gemini) { g.logger = logger }
}

// NewGemini creates a Gemini dialer. It fails with ErrMissingCredential when
// apiKey is empty and no token source is given.
func NewGemini(apiKey string, opts ...GeminiOption) (*Gemini, error) {
	g := &Gemini{
		apiKey:       apiKey,
		endpoint:     GeminiLiveURL,
		setupTimeout: defaultSetupTimeout,
		dialer:       httpc.WebsocketDialer(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.apiKey == "" && g.tokens == nil {
		return nil, ErrMissingCredential
	}
	return g, nil
}

// Dial connects, sends the session setup and waits for the server to
// acknowledge it. OnOpen fires from the reader goroutine once Dial succeeds.
func (g *Gemini) Dial(ctx context.Context, cfg SessionConfig, cb Callbacks) (Session, error) {
	u, header, err := g.request()
	if err != nil {
		return nil, err
	}

	conn, resp, err := g.dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: HTTP %d: %v", ErrConnectionFailed, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &geminiSession{
		conn:   conn,
		cb:     cb,
		logger: g.logger,
		done:   make(chan struct{}),
	}

	if err := s.writeJSON(setupMessage(cfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	if err := s.awaitSetup(ctx, g.setupTimeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	g.logger.Info("gemini live session ready", "model", modelName(cfg.Model))

	go s.readLoop()
	return s, nil
}

func (g *Gemini) request() (string, http.Header, error) {
	header := make(http.Header)
	u, err := url.Parse(g.endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid endpoint: %v", ErrConnectionFailed, err)
	}

	if g.tokens != nil {
		tok, err := g.tokens.Token()
		if err != nil {
			return "", nil, fmt.Errorf("%w: token: %v", ErrConnectionFailed, err)
		}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	} else {
		q := u.Query()
		q.Set("key", g.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), header, nil
}

func modelName(model string) string {
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return model
}

// setupMessage builds the initial configuration sent to Gemini Live.
func setupMessage(cfg SessionConfig) map[string]any {
	voiceName := cfg.Voice
	if voiceName == "" {
		voiceName = DefaultVoice
	}

	setup := map[string]any{
		"model": modelName(cfg.Model),
		"generation_config": map[string]any{
			"response_modalities": []string{"AUDIO"},
			"speech_config": map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": voiceName,
					},
				},
			},
		},
	}
	if cfg.SystemInstruction != "" {
		setup["system_instruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": cfg.SystemInstruction},
			},
		}
	}
	if cfg.InputTranscription {
		setup["input_audio_transcription"] = map[string]any{}
	}
	if cfg.OutputTranscription {
		setup["output_audio_transcription"] = map[string]any{}
	}
	return map[string]any{"setup": setup}
}

// serverMessage is the subset of BidiGenerateContentServerMessage we read.
type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete"`
	ServerContent *serverContent   `json:"serverContent"`
	GoAway        *struct {
		TimeLeft string `json:"timeLeft"`
	} `json:"goAway"`
}

type serverContent struct {
	ModelTurn *struct {
		Parts []struct {
			InlineData *struct {
				MimeType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"modelTurn"`
	Interrupted         bool           `json:"interrupted"`
	TurnComplete        bool           `json:"turnComplete"`
	InputTranscription  *transcription `json:"inputTranscription"`
	OutputTranscription *transcription `json:"outputTranscription"`
}

type transcription struct {
	Text string `json:"text"`
}

func (c *serverContent) message() Message {
	msg := Message{
		Interrupted:  c.Interrupted,
		TurnComplete: c.TurnComplete,
	}
	if c.ModelTurn != nil {
		for _, part := range c.ModelTurn.Parts {
			if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MimeType, "audio/") {
				continue
			}
			msg.Audio = append(msg.Audio, pcm.Blob{
				Data:     part.InlineData.Data,
				MIMEType: part.InlineData.MimeType,
			})
		}
	}
	if c.InputTranscription != nil {
		msg.InputTranscript = c.InputTranscription.Text
	}
	if c.OutputTranscription != nil {
		msg.OutputTranscript = c.OutputTranscription.Text
	}
	return msg
}

// geminiSession is one open Gemini Live websocket.
type geminiSession struct {
	conn   *websocket.Conn
	cb     Callbacks
	logger *slog.Logger

	wsMu sync.Mutex // serializes writes

	cbMu   sync.Mutex // held while a callback runs
	closed atomic.Bool
	once   sync.Once
	done   chan struct{}
}

func (s *geminiSession) awaitSetup(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.conn.SetReadDeadline(deadline)

	// Cancellation expires the deadline so the pending read returns.
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
		close(interrupted)
	})
	defer func() {
		if !stop() {
			<-interrupted
		}
		s.conn.SetReadDeadline(time.Time{})
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("gemini: failed to parse message", "error", err)
			continue
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func (s *geminiSession) readLoop() {
	defer close(s.done)

	s.deliver(func() {
		if s.cb.OnOpen != nil {
			s.cb.OnOpen()
		}
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			if closeErr, ok := closeErrorFrom(err); ok {
				s.deliver(func() {
					if s.cb.OnClose != nil {
						s.cb.OnClose(closeErr)
					}
				})
				return
			}
			s.deliver(func() {
				if s.cb.OnError != nil {
					s.cb.OnError(err)
				}
			})
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("gemini: failed to parse message", "error", err)
			continue
		}
		if msg.GoAway != nil {
			s.logger.Warn("gemini: server is going away", "time_left", msg.GoAway.TimeLeft)
		}
		if msg.ServerContent == nil {
			continue
		}

		m := msg.ServerContent.message()
		s.deliver(func() {
			if s.cb.OnMessage != nil {
				s.cb.OnMessage(m)
			}
		})
	}
}

// deliver runs fn unless the session was closed locally.
func (s *geminiSession) deliver(fn func()) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.closed.Load() {
		return
	}
	fn()
}

// Send transmits one audio frame as realtime input.
func (s *geminiSession) Send(blob pcm.Blob) error {
	if s.closed.Load() {
		return ErrNotConnected
	}
	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      blob.Data,
					"mime_type": blob.MIMEType,
				},
			},
		},
	}
	return s.writeJSON(msg)
}

func (s *geminiSession) writeJSON(v any) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close sends a normal closure and releases the connection.
func (s *geminiSession) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)

		// Wait out any callback in flight.
		s.cbMu.Lock()
		s.cbMu.Unlock()

		s.wsMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.wsMu.Unlock()

		err = s.conn.Close()
	})
	return err
}

var _ Dialer = (*Gemini)(nil)
