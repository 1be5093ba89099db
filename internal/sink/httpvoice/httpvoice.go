// Package httpvoice delivers utterances to an HTTP text-to-speech backend
// via SSML and plays the response back through audio.Player. Exactly one
// utterance is ever outstanding against the backend at a time, matching a
// browser SpeechSynthesis queue's single-utterance semantics.
package httpvoice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/narrator-dev/narrator/internal/audio"
	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/logger"
)

var _ domain.Sink = (*Sink)(nil)

// DefaultAudioFormat matches the PCM shape audio.Player expects.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Option configures a Sink.
type Option func(*Sink)

// WithHTTPTimeout bounds a single synthesis request.
func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Sink) {
		s.httpClient.Timeout = d
	}
}

// WithAudioFormat overrides the requested output format header.
func WithAudioFormat(format string) Option {
	return func(s *Sink) {
		s.format = format
	}
}

// WithVoices overrides the voices reported by ListVoices.
func WithVoices(voices ...string) Option {
	return func(s *Sink) {
		s.voices = voices
	}
}

// WithCache attaches a persistent audio cache so repeated identical
// humanized text doesn't re-hit the backend.
func WithCache(cache *audio.Cache) Option {
	return func(s *Sink) {
		s.cache = cache
	}
}

// Sink POSTs SSML to endpoint and plays the resulting audio through an
// audio.Player. Exactly one request is in flight at a time.
type Sink struct {
	endpoint   string
	apiKey     string
	format     string
	voices     []string
	httpClient *http.Client
	player     *audio.Player
	cache      *audio.Cache
	log        *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates an httpvoice sink targeting endpoint (e.g. a regional Azure
// Cognitive Services TTS URL), authenticated with apiKey.
func New(endpoint, apiKey string, player *audio.Player, log *logger.Logger, opts ...Option) *Sink {
	s := &Sink{
		endpoint: endpoint,
		apiKey:   apiKey,
		format:   DefaultAudioFormat,
		player:   player,
		log:      log,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver synthesizes and plays u.Text, reporting completion through
// onComplete exactly once.
func (s *Sink) Deliver(ctx context.Context, u domain.Utterance, onComplete func(error)) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.cancel = nil
			s.mu.Unlock()
			cancel()
		}()

		audioData, err := s.synthesizeWithCache(ctx, u.Text)
		if err != nil {
			s.log.Warn("httpvoice: synthesis failed: %v", err)
			onComplete(err)
			return
		}

		if s.player != nil {
			if err := s.player.Play(audioData); err != nil {
				s.log.Warn("httpvoice: playback failed: %v", err)
				onComplete(err)
				return
			}
		}

		onComplete(nil)
	}()
}

func (s *Sink) synthesizeWithCache(ctx context.Context, text string) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(text); ok {
			return data, nil
		}
	}

	data, err := s.synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(text, data)
	}
	return data, nil
}

func (s *Sink) synthesize(ctx context.Context, text string) ([]byte, error) {
	ssml := s.buildSSML(text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", s.format)
	req.Header.Set("User-Agent", "narrator/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts backend error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func (s *Sink) buildSSML(text string) string {
	voice := "en-US-AriaNeural"
	if len(s.voices) > 0 {
		voice = s.voices[0]
	}
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='en-US'><voice xml:lang='en-US' name='%s'>%s</voice></speak>`,
		voice, escapeSSML(text),
	)
}

func escapeSSML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

// Cancel best-effort aborts the in-flight request and/or playback.
func (s *Sink) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.player != nil {
		s.player.Stop()
	}
}

// ListVoices returns the configured voice identifiers.
func (s *Sink) ListVoices() []string { return s.voices }

// Ready reports whether an endpoint and API key are configured.
func (s *Sink) Ready() bool {
	return s.endpoint != "" && s.apiKey != ""
}
