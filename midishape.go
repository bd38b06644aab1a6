// Package midishape loads standard MIDI files into a beat-indexed song
// representation, transforms them through composable filters, and writes
// them back out. Rendering to audio lives in RenderSamples.
package midishape

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2/smf"

	intbars "github.com/cbegin/midishape-go/internal/bars"
	intfilters "github.com/cbegin/midishape-go/internal/filters"
	intsmfio "github.com/cbegin/midishape-go/internal/smfio"
	intsong "github.com/cbegin/midishape-go/internal/song"
	intsynth "github.com/cbegin/midishape-go/internal/synth"
)

// Filter rewrites a song without mutating its input. Filters compose
// left to right through Process.
type Filter = intfilters.Filter

// ErrEmptySong is returned when a loaded file contains no tracks with notes.
var ErrEmptySong = errors.New("midishape: song has no tracks with notes")

type Option func(*config)

type config struct {
	log          logrus.FieldLogger
	ticksPerBeat int
}

func defaultConfig() config {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return config{log: quiet, ticksPerBeat: intsmfio.DefaultTicksPerBeat}
}

// WithLogger routes import diagnostics (overlapping notes, unmatched
// note-offs) to the given logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(cfg *config) { cfg.log = log }
}

// WithTicksPerBeat sets the tick resolution used when writing MIDI files.
func WithTicksPerBeat(tpb int) Option {
	return func(cfg *config) { cfg.ticksPerBeat = tpb }
}

// LoadFile reads a standard MIDI file from disk.
func LoadFile(path string, opts ...Option) (*intsong.Song, error) {
	mid, err := smf.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return importSMF(mid, opts)
}

// Load reads a standard MIDI file from r.
func Load(r io.Reader, opts ...Option) (*intsong.Song, error) {
	mid, err := smf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	return importSMF(mid, opts)
}

func importSMF(mid *smf.SMF, opts []Option) (*intsong.Song, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := intsmfio.Import(mid, intsmfio.WithLogger(cfg.log))
	if err != nil {
		return nil, err
	}
	if len(s.Tracks) == 0 {
		return nil, ErrEmptySong
	}
	return s, nil
}

// SaveFile writes the song to path as a format-1 standard MIDI file.
func SaveFile(s *intsong.Song, path string, opts ...Option) error {
	var buf bytes.Buffer
	if err := Save(s, &buf, opts...); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Save writes the song to w as a format-1 standard MIDI file.
func Save(s *intsong.Song, w io.Writer, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	mid, err := intsmfio.Export(s, intsmfio.WithTicksPerBeat(cfg.ticksPerBeat))
	if err != nil {
		return err
	}
	_, err = mid.WriteTo(w)
	return err
}

// Process applies filters left to right, returning a new song. The input
// song is never modified. A song with no notes is rejected up front.
func Process(s *intsong.Song, fs ...Filter) (*intsong.Song, error) {
	if songEmpty(s) {
		return nil, ErrEmptySong
	}
	out := s.Clone()
	for _, f := range fs {
		var err error
		out, err = f(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ProcessFile is the LoadFile -> Process -> SaveFile pipeline in one call.
func ProcessFile(inPath, outPath string, fs []Filter, opts ...Option) error {
	s, err := LoadFile(inPath, opts...)
	if err != nil {
		return err
	}
	out, err := Process(s, fs...)
	if err != nil {
		return err
	}
	return SaveFile(out, outPath, opts...)
}

func songEmpty(s *intsong.Song) bool {
	for _, t := range s.Tracks {
		if len(t.Notes) > 0 {
			return false
		}
	}
	return true
}

// Identity returns its input unchanged. Useful as a pipeline placeholder.
func Identity() Filter { return intfilters.Identity }

// ThinChords keeps only the highest note of each simultaneous chord per channel.
func ThinChords() Filter { return intfilters.ThinChords }

// FixedTempo rewrites the song so every beat lasts the same wall-clock time,
// normalizing the tempo map to a single 60 BPM entry.
func FixedTempo() Filter { return intfilters.FixedTempo }

// Swing returns a filter that applies a swing feel with the given beat
// multiplier. Deswing(mult) inverts it exactly.
func Swing(mult float64) (Filter, error) { return intfilters.NewSwing(mult) }

// Deswing returns the inverse of Swing(mult).
func Deswing(mult float64) (Filter, error) { return intfilters.NewDeswing(mult) }

// SplitBars cuts the song into per-bar slices with beats rebased to the bar
// start and squished so a beat always spans a quarter note.
func SplitBars(s *intsong.Song) []intbars.Bar {
	return intbars.Generate(s)
}

// JoinBars reverses SplitBars. Channel instrument assignments are carried
// over from src, which is typically the song the bars were split from.
func JoinBars(bs []intbars.Bar, src *intsong.Song) *intsong.Song {
	out := intbars.Reassemble(bs)
	if src != nil {
		for ch, prog := range src.ChannelInstrument {
			out.ChannelInstrument[ch] = prog
		}
	}
	return out
}

// RenderSamples renders the song to interleaved stereo float32 samples
// using a SoundFont.
func RenderSamples(s *intsong.Song, sf2 io.ReadSeeker, sampleRate int) ([]float32, error) {
	r, err := intsynth.NewRenderer(sf2, sampleRate)
	if err != nil {
		return nil, err
	}
	return r.Render(s)
}

// EncodeWAVFloat32LE encodes samples as a 32-bit IEEE float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	return intsynth.EncodeWAV(samples, sampleRate, channels)
}
