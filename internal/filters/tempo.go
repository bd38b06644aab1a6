package filters

import (
	"fmt"
	"math"
	"sort"

	"github.com/cbegin/midishape-go/internal/song"
	"github.com/cbegin/midishape-go/internal/timing"
)

// FixedTempoBPM is the single tempo left behind by FixedTempo. At 60 BPM a
// beat is exactly one second, so positions survive as wall-clock time when
// a renderer reinterprets them.
const FixedTempoBPM = 60

// overlapGap keeps repaired same-key notes strictly apart.
const overlapGap = 1e-5

// tempoSegment is one piece of the piecewise-constant tempo function:
// from FromBeat (inclusive) to the next segment's FromBeat, the tempo is
// BPM, and OffsetSeconds of real time have elapsed before it starts.
type tempoSegment struct {
	FromBeat      float64
	BPM           float64
	OffsetSeconds float64
}

// tempoSegments turns a tempo-change list into walkable segments. An empty
// list becomes a single default-tempo segment; a first change after beat 0
// extends backwards so early notes convert at the same tempo as the first
// declared segment.
func tempoSegments(changes []song.TempoChange) ([]tempoSegment, error) {
	sorted := make([]song.TempoChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Beat < sorted[j].Beat })

	if len(sorted) == 0 {
		sorted = []song.TempoChange{{Beat: 0, BPM: song.DefaultBPM}}
	}
	if sorted[0].Beat > 0 {
		sorted = append([]song.TempoChange{{Beat: 0, BPM: sorted[0].BPM}}, sorted...)
	}

	segs := make([]tempoSegment, 0, len(sorted))
	offset := 0.0
	for i, tc := range sorted {
		if tc.BPM <= 0 {
			return nil, fmt.Errorf("filters: non-positive tempo %v at beat %v", tc.BPM, tc.Beat)
		}
		if i > 0 {
			prev := segs[i-1]
			offset += (tc.Beat - prev.FromBeat) * timing.SecondsPerBeat(prev.BPM)
		}
		segs = append(segs, tempoSegment{FromBeat: tc.Beat, BPM: tc.BPM, OffsetSeconds: offset})
	}
	return segs, nil
}

// segmentAt finds the segment governing the given beat.
func segmentAt(segs []tempoSegment, beat float64) tempoSegment {
	i := sort.Search(len(segs), func(i int) bool { return timing.Gt(segs[i].FromBeat, beat) })
	if i == 0 {
		return segs[0]
	}
	return segs[i-1]
}

// BeatToSeconds maps a beat position under the given tempo changes to the
// wall-clock seconds elapsed since beat 0.
func BeatToSeconds(changes []song.TempoChange, beat float64) (float64, error) {
	segs, err := tempoSegments(changes)
	if err != nil {
		return 0, err
	}
	seg := segmentAt(segs, beat)
	return seg.OffsetSeconds + (beat-seg.FromBeat)*timing.SecondsPerBeat(seg.BPM), nil
}

// FixedTempo rewrites every note from the song's variable tempo timeline
// onto a single 60 BPM timeline, preserving absolute wall-clock timing.
// A note's duration converts at the tempo of its onset segment; a note
// that spans a tempo change keeps that approximation. Because notes scale
// independently, same-key notes can end up overlapping afterwards, so each
// track gets an overlap repair pass that clamps the earlier note just
// short of the next onset.
func FixedTempo(s *song.Song) (*song.Song, error) {
	segs, err := tempoSegments(s.TempoChanges)
	if err != nil {
		return nil, err
	}
	for ti := range s.Tracks {
		t := &s.Tracks[ti]
		for ni := range t.Notes {
			n := &t.Notes[ni]
			seg := segmentAt(segs, n.Beat)
			spb := timing.SecondsPerBeat(seg.BPM)
			n.Beat = seg.OffsetSeconds + (n.Beat-seg.FromBeat)*spb
			n.Duration *= spb
		}
		t.ClampNotes(overlapGap)
	}
	s.TempoChanges = []song.TempoChange{{Beat: 0, BPM: FixedTempoBPM}}
	return s, nil
}

// beatsEqual is tolerant equality on beat positions.
func beatsEqual(a, b float64) bool {
	return math.Abs(a-b) <= timing.Epsilon
}
