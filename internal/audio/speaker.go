// Package audio plays MP3 sources through the system speaker.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"karolbroda.com/lyreplay/internal/player"
)

const (
	SampleRate      = beep.SampleRate(48000)
	resampleQuality = 4
	// maxSourceBytes bounds a downloaded track held in memory.
	maxSourceBytes = 64 << 20
)

var ErrSourceTooLarge = errors.New("audio source too large")

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *log.Logger
}

// Speaker implements player.Output. Sources are downloaded whole so the
// decoder can seek.
type Speaker struct {
	client *http.Client
	logger *log.Logger

	initOnce sync.Once
	initErr  error
}

func NewSpeaker(opts Options) *Speaker {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Speaker{client: client, logger: logger}
}

func (s *Speaker) init() error {
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(SampleRate, SampleRate.N(100*time.Millisecond))
	})
	return s.initErr
}

func (s *Speaker) Open(ctx context.Context, src string) (player.Stream, error) {
	if err := s.init(); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	data, err := s.fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	decoder, format, err := mp3.Decode(memoryFile{bytes.NewReader(data)})
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", src, err)
	}

	s.logger.Debug("opened audio source", "src", src, "bytes", len(data), "rate", format.SampleRate)
	return &stream{decoder: decoder, format: format}, nil
}

func (s *Speaker) fetch(ctx context.Context, src string) ([]byte, error) {
	if path, ok := localPath(src); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read audio file: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "lyreplay/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) > maxSourceBytes {
		return nil, ErrSourceTooLarge
	}
	return data, nil
}

func localPath(src string) (string, bool) {
	if strings.HasPrefix(src, "file://") {
		return strings.TrimPrefix(src, "file://"), true
	}
	if strings.HasPrefix(src, "/") {
		return src, true
	}
	return "", false
}

var (
	_ player.Output     = (*Speaker)(nil)
	_ io.ReadSeekCloser = memoryFile{}
)

type memoryFile struct {
	*bytes.Reader
}

func (memoryFile) Close() error { return nil }

// stream fields read by the audio thread are guarded by speaker.Lock.
type stream struct {
	decoder beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	closed  bool
}

func (s *stream) Start(volume float64, onEnd func()) error {
	speaker.Lock()
	if s.closed {
		speaker.Unlock()
		return errors.New("stream closed")
	}
	s.ctrl = &beep.Ctrl{Streamer: s.decoder}
	var out beep.Streamer = s.ctrl
	if s.format.SampleRate != SampleRate {
		out = beep.Resample(resampleQuality, s.format.SampleRate, SampleRate, s.ctrl)
	}
	s.volume = &effects.Volume{Streamer: out, Base: 2}
	applyVolume(s.volume, volume)
	speaker.Unlock()

	// The callback runs on the audio thread with the speaker locked, so the
	// listener gets its own goroutine.
	done := beep.Callback(func() {
		if !s.closed && onEnd != nil {
			go onEnd()
		}
	})
	speaker.Play(beep.Seq(s.volume, done))
	return nil
}

func (s *stream) SetPaused(paused bool) {
	speaker.Lock()
	defer speaker.Unlock()
	if s.ctrl != nil {
		s.ctrl.Paused = paused
	}
}

func (s *stream) SetVolume(volume float64) {
	speaker.Lock()
	defer speaker.Unlock()
	if s.volume != nil {
		applyVolume(s.volume, volume)
	}
}

func (s *stream) Seek(positionMs int64) error {
	speaker.Lock()
	defer speaker.Unlock()

	pos := s.format.SampleRate.N(time.Duration(positionMs) * time.Millisecond)
	if n := s.decoder.Len(); n > 0 && pos >= n {
		pos = n - 1
	}
	if pos < 0 {
		pos = 0
	}
	return s.decoder.Seek(pos)
}

func (s *stream) Position() int64 {
	speaker.Lock()
	defer speaker.Unlock()
	return s.format.SampleRate.D(s.decoder.Position()).Milliseconds()
}

func (s *stream) Duration() int64 {
	speaker.Lock()
	defer speaker.Unlock()
	n := s.decoder.Len()
	if n <= 0 {
		return 0
	}
	return s.format.SampleRate.D(n).Milliseconds()
}

func (s *stream) Close() error {
	speaker.Lock()
	if s.closed {
		speaker.Unlock()
		return nil
	}
	s.closed = true
	if s.ctrl != nil {
		s.ctrl.Streamer = nil
	}
	speaker.Unlock()

	return s.decoder.Close()
}

// applyVolume maps a linear level in [0,1] onto effects.Volume, which scales
// amplitude by Base^Volume.
func applyVolume(v *effects.Volume, level float64) {
	if level <= 0 || math.IsNaN(level) {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(level, 1))
}
