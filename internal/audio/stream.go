// Package audio plays rendered stereo buffers through the system output.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// BufferSource streams a fully rendered interleaved stereo buffer and
// reports EOF when it runs out, so playback ends by itself.
type BufferSource struct {
	mu      sync.Mutex
	samples []float32
	pos     int
}

func NewBufferSource(samples []float32) *BufferSource {
	return &BufferSource{samples: samples}
}

// Read emits little-endian float32 frames, matching the F32 player format.
func (s *BufferSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := 0
	for ; n+4 <= len(p) && s.pos < len(s.samples); n += 4 {
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(s.samples[s.pos]))
		s.pos++
	}
	return n, nil
}

func (s *BufferSource) Close() error { return nil }

type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer prepares playback of the given interleaved stereo buffer.
func NewPlayer(sampleRate int, samples []float32) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewBufferSource(samples)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// Position returns the playback position the listener actually hears.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

// Wait blocks until the buffer has played out.
func (p *Player) Wait() {
	for p.player.IsPlaying() {
		time.Sleep(20 * time.Millisecond)
	}
}

func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
