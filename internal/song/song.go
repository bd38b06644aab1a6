// Package song holds the beat-indexed representation of a MIDI file: notes
// with real-valued onsets and durations, grouped into explicitly indexed
// tracks, plus the file-global tempo and time-signature change lists.
// Positions are in beats from the start of the file and are independent of
// tempo; converting to and from wall-clock time is the job of the filters.
package song

import (
	"math"
	"sort"

	"github.com/cbegin/midishape-go/internal/timing"
)

// DefaultBPM applies when a file carries no tempo events.
const DefaultBPM = 120

// Note is a single sounding note. Channel counts from 0, Key is the MIDI
// note number (60 = middle C), Beat is the onset in beats from file start
// and Duration is in beats, never negative. A Note is owned by exactly one
// Track.
type Note struct {
	Channel  int
	Key      int
	Velocity int
	Beat     float64
	Duration float64
}

// Track is an ordered collection of notes plus a name. Note order carries
// no meaning; operations that need sorted notes sort first. Index is the
// track's identity within its Song and survives operations that do not
// explicitly renumber.
type Track struct {
	Index int
	Name  string
	Notes []Note
}

// Clone returns a deep copy: the note slice is duplicated so the copy can
// be mutated independently.
func (t Track) Clone() Track {
	notes := make([]Note, len(t.Notes))
	copy(notes, t.Notes)
	t.Notes = notes
	return t
}

// Slice returns a copy of t holding only notes whose onset falls in the
// half-open range [b, e), with b subtracted from each onset.
func (t Track) Slice(b, e float64) Track {
	var notes []Note
	for _, n := range t.Notes {
		if timing.Sandwiched(b, n.Beat, e) {
			n.Beat = math.Max(0, n.Beat-b)
			notes = append(notes, n)
		}
	}
	t.Notes = notes
	return t
}

// SliceWithTimeSignature is Slice followed by rescaling the shifted notes
// into quarter-note-equivalent beats for the given signature. Durations
// rescale together with onsets; the map is linear but leaving durations
// alone would detune note ends against their onsets.
func (t Track) SliceWithTimeSignature(b, e float64, ts TimeSignature) Track {
	squish := ts.SquishFactor()
	var notes []Note
	for _, n := range t.Notes {
		if timing.Sandwiched(b, n.Beat, e) {
			n.Beat = math.Max(0, n.Beat-b) * squish
			n.Duration *= squish
			notes = append(notes, n)
		}
	}
	t.Notes = notes
	return t
}

// Offset shifts every note onset by beats, in place.
func (t *Track) Offset(beats float64) {
	for i := range t.Notes {
		t.Notes[i].Beat += beats
	}
}

// Scale stretches the track in time by factor, in place. Onsets and
// durations scale together so note ends stay aligned with their onsets.
func (t *Track) Scale(factor float64) {
	for i := range t.Notes {
		t.Notes[i].Beat *= factor
		t.Notes[i].Duration *= factor
	}
}

// SortNotes orders notes by onset, stably.
func (t *Track) SortNotes() {
	sort.SliceStable(t.Notes, func(i, j int) bool {
		return t.Notes[i].Beat < t.Notes[j].Beat
	})
}

// ClampNotes repairs overlapping same-key, same-channel notes: each note's
// duration is cut so it ends at least minGap beats before the next onset on
// the same key. Durations never go negative. Notes end up sorted by onset.
func (t *Track) ClampNotes(minGap float64) {
	t.SortNotes()
	type key struct{ note, channel int }
	previous := make(map[key]int)
	for i := range t.Notes {
		cur := &t.Notes[i]
		k := key{cur.Key, cur.Channel}
		if pi, ok := previous[k]; ok {
			prev := &t.Notes[pi]
			required := math.Max(cur.Beat-prev.Beat-minGap, 0)
			if required < prev.Duration {
				prev.Duration = required
			}
		}
		previous[k] = i
	}
}

// MostUsedChannel returns the channel the majority of this track's notes
// are on, ties broken by first appearance, or -1 for an empty track.
func (t Track) MostUsedChannel() int {
	if len(t.Notes) == 0 {
		return -1
	}
	counts := make(map[int]int)
	var order []int
	for _, n := range t.Notes {
		if counts[n.Channel] == 0 {
			order = append(order, n.Channel)
		}
		counts[n.Channel]++
	}
	best := order[0]
	for _, ch := range order[1:] {
		if counts[ch] > counts[best] {
			best = ch
		}
	}
	return best
}

// TempoChange sets a new tempo from Beat onward, until superseded. A Song's
// list is a step function over beat time; callers sort by Beat before
// interpreting it.
type TempoChange struct {
	Beat float64
	BPM  float64
}

// TimeSignature is a meter change at Beat. Denominator is the raw beat-unit
// divisor (4 = quarter note, 8 = eighth); the codec boundary converts from
// the file's log2 encoding.
type TimeSignature struct {
	Numerator   int
	Denominator int
	Beat        float64
}

// BarLength is the bar length in unit (quarter-note) beats.
func (ts TimeSignature) BarLength() float64 {
	return float64(ts.Numerator) * 4 / float64(ts.Denominator)
}

// SquishFactor converts a file-relative beat count into a quarter-note
// beat count: an eighth-note beat lasts half as long, so factor 2.
func (ts TimeSignature) SquishFactor() float64 {
	return float64(ts.Denominator) / 4
}

// FourFour is the default meter, declared at beat 0.
func FourFour() TimeSignature {
	return TimeSignature{Numerator: 4, Denominator: 4}
}

// Song is the whole-file representation. Tracks are ordered by Index;
// ChannelInstrument maps channel to program number, last writer wins.
type Song struct {
	Tracks               []Track
	ChannelInstrument    map[int]int
	TempoChanges         []TempoChange
	TimeSignatureChanges []TimeSignature
}

// Clone deep-copies the song: tracks with their notes, the instrument map,
// and both change lists.
func (s *Song) Clone() *Song {
	out := &Song{
		Tracks:               make([]Track, len(s.Tracks)),
		ChannelInstrument:    make(map[int]int, len(s.ChannelInstrument)),
		TempoChanges:         make([]TempoChange, len(s.TempoChanges)),
		TimeSignatureChanges: make([]TimeSignature, len(s.TimeSignatureChanges)),
	}
	for i, t := range s.Tracks {
		out.Tracks[i] = t.Clone()
	}
	for ch, prog := range s.ChannelInstrument {
		out.ChannelInstrument[ch] = prog
	}
	copy(out.TempoChanges, s.TempoChanges)
	copy(out.TimeSignatureChanges, s.TimeSignatureChanges)
	return out
}

// DropEmptyTracks removes tracks with no notes. Musical content is
// unaffected; surviving tracks keep their Index.
func (s *Song) DropEmptyTracks() {
	kept := s.Tracks[:0]
	for _, t := range s.Tracks {
		if len(t.Notes) > 0 {
			kept = append(kept, t)
		}
	}
	s.Tracks = kept
}

// Length is the song length in beats: the ceiling of the last note's end.
func (s *Song) Length() int {
	highest := 0
	for _, t := range s.Tracks {
		for _, n := range t.Notes {
			if end := int(math.Ceil(n.Beat + n.Duration)); end > highest {
				highest = end
			}
		}
	}
	return highest
}

// SortTempoChanges orders the tempo list by beat, stably.
func (s *Song) SortTempoChanges() {
	sort.SliceStable(s.TempoChanges, func(i, j int) bool {
		return s.TempoChanges[i].Beat < s.TempoChanges[j].Beat
	})
}

// StartingBPM is the first tempo entry's BPM, or DefaultBPM for a song
// with no tempo events.
func (s *Song) StartingBPM() float64 {
	if len(s.TempoChanges) == 0 {
		return DefaultBPM
	}
	return s.TempoChanges[0].BPM
}

// StartingTimeSignature is the signature declared at beat 0, defaulting
// to 4/4.
func (s *Song) StartingTimeSignature() TimeSignature {
	for _, ts := range s.TimeSignatureChanges {
		if ts.Beat == 0 {
			return ts
		}
	}
	return FourFour()
}
