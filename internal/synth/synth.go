// Package synth renders a song to stereo PCM through a SoundFont, so a
// processed file can be auditioned without an external player. Notes are
// scheduled sample-accurately under the song's tempo map.
package synth

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sort"

	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/cbegin/midishape-go/internal/filters"
	"github.com/cbegin/midishape-go/internal/song"
)

const (
	// block is the fixed render granularity. Keeping it aligned with the
	// synthesizer's internal block size avoids ring-buffer edge cases.
	block = 1024

	programChange = 0xC0
)

type Renderer struct {
	sampleRate int
	font       *meltysynth.SoundFont
	settings   *meltysynth.SynthesizerSettings
}

// NewRenderer loads a SoundFont from sf2 and prepares synthesizer settings
// for the given sample rate.
func NewRenderer(sf2 io.ReadSeeker, sampleRate int) (*Renderer, error) {
	if sampleRate <= 0 {
		return nil, errors.New("synth: sample rate must be positive")
	}
	font, err := meltysynth.NewSoundFont(sf2)
	if err != nil {
		return nil, err
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	settings.BlockSize = block
	return &Renderer{sampleRate: sampleRate, font: font, settings: settings}, nil
}

type noteEvent struct {
	sample  int
	channel int32
	key     int32
	vel     int32
}

// Render converts every note's beat timing to seconds under the song's
// tempo map and renders interleaved stereo samples, with a one second tail
// for release decay. Each call builds a fresh synthesizer, so renders are
// independent.
func (r *Renderer) Render(s *song.Song) ([]float32, error) {
	syn, err := meltysynth.NewSynthesizer(r.font, r.settings)
	if err != nil {
		return nil, err
	}
	for ch, prog := range s.ChannelInstrument {
		syn.ProcessMidiMessage(int32(ch), programChange, int32(prog), 0)
	}

	ons, offs, total, err := r.schedule(s)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, errors.New("synth: song has no sounding notes")
	}
	total += r.sampleRate // release tail

	left := make([]float32, block)
	right := make([]float32, block)
	out := make([]float32, 0, total*2)
	onIdx, offIdx := 0, 0
	for pos := 0; pos < total; pos += block {
		for offIdx < len(offs) && offs[offIdx].sample < pos+block {
			ev := offs[offIdx]
			syn.NoteOff(ev.channel, ev.key)
			offIdx++
		}
		for onIdx < len(ons) && ons[onIdx].sample < pos+block {
			ev := ons[onIdx]
			syn.NoteOn(ev.channel, ev.key, ev.vel)
			onIdx++
		}
		syn.Render(left, right)
		n := block
		if pos+n > total {
			n = total - pos
		}
		for i := 0; i < n; i++ {
			out = append(out, left[i], right[i])
		}
	}
	normalize(out)
	return out, nil
}

// schedule flattens all tracks into sample-stamped on and off event lists
// and reports the last off sample.
func (r *Renderer) schedule(s *song.Song) (ons, offs []noteEvent, lastOff int, err error) {
	for _, t := range s.Tracks {
		for _, n := range t.Notes {
			if n.Duration <= 0 {
				continue
			}
			startSec, err := filters.BeatToSeconds(s.TempoChanges, n.Beat)
			if err != nil {
				return nil, nil, 0, err
			}
			endSec, err := filters.BeatToSeconds(s.TempoChanges, n.Beat+n.Duration)
			if err != nil {
				return nil, nil, 0, err
			}
			start := int(startSec * float64(r.sampleRate))
			end := int(endSec * float64(r.sampleRate))
			if end <= start {
				continue
			}
			ons = append(ons, noteEvent{sample: start, channel: int32(n.Channel), key: int32(n.Key), vel: int32(n.Velocity)})
			offs = append(offs, noteEvent{sample: end, channel: int32(n.Channel), key: int32(n.Key)})
			if end > lastOff {
				lastOff = end
			}
		}
	}
	sort.SliceStable(ons, func(i, j int) bool { return ons[i].sample < ons[j].sample })
	sort.SliceStable(offs, func(i, j int) bool { return offs[i].sample < offs[j].sample })
	return ons, offs, lastOff, nil
}

// normalize scales the buffer so the loudest sample sits just under full
// scale, avoiding clipping without changing balance.
func normalize(samples []float32) {
	var peak float32
	for _, v := range samples {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	gain := float32(0.99) / peak
	if gain >= 1 {
		return
	}
	for i := range samples {
		samples[i] *= gain
	}
}

// EncodeWAV wraps interleaved float32 samples in a RIFF/WAVE container
// (IEEE float format).
func EncodeWAV(samples []float32, sampleRate, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
