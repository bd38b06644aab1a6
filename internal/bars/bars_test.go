package bars

import (
	"math"
	"testing"

	"github.com/cbegin/midishape-go/internal/song"
)

func TestGenerateUniformMeter(t *testing.T) {
	s := &song.Song{Tracks: []song.Track{{
		Index: 0,
		Notes: []song.Note{
			{Key: 60, Beat: 0, Duration: 1},
			{Key: 62, Beat: 5, Duration: 1},
			{Key: 64, Beat: 7.5, Duration: 0.5},
		},
	}}}
	bs := Generate(s)
	// Song length 8, bars of 4 beats, iteration runs to length+1.
	if len(bs) != 3 {
		t.Fatalf("got %d bars, want 3", len(bs))
	}
	if n := bs[0].Tracks[0].Notes; len(n) != 1 || n[0].Beat != 0 {
		t.Errorf("bar 0 notes = %+v", n)
	}
	second := bs[1].Tracks[0].Notes
	if len(second) != 2 {
		t.Fatalf("bar 1 has %d notes, want 2", len(second))
	}
	if second[0].Beat != 1 || second[1].Beat != 3.5 {
		t.Errorf("bar 1 beats = %v, %v; want 1, 3.5", second[0].Beat, second[1].Beat)
	}
	if len(bs[2].Tracks[0].Notes) != 0 {
		t.Errorf("trailing bar should be empty, got %+v", bs[2].Tracks[0].Notes)
	}
	if bs[0].StartingTempo != song.DefaultBPM {
		t.Errorf("StartingTempo = %v, want default", bs[0].StartingTempo)
	}
}

func TestGenerateSquishesCompoundMeter(t *testing.T) {
	s := &song.Song{
		Tracks: []song.Track{{
			Index: 0,
			Notes: []song.Note{{Key: 60, Beat: 9, Duration: 0.5}},
		}},
		TimeSignatureChanges: []song.TimeSignature{
			{Numerator: 4, Denominator: 4, Beat: 0},
			{Numerator: 6, Denominator: 8, Beat: 8},
		},
	}
	bs := Generate(s)
	// Bars: [0,4) [4,8) in 4/4, then 3-beat bars in 6/8 from beat 8.
	if bs[2].TimeSignature.Denominator != 8 {
		t.Fatalf("bar 2 signature = %+v, want 6/8", bs[2].TimeSignature)
	}
	notes := bs[2].Tracks[0].Notes
	if len(notes) != 1 {
		t.Fatalf("bar 2 has %d notes, want 1", len(notes))
	}
	// Offset by 8, squished by 2: beat (9-8)*2, duration 0.5*2.
	if notes[0].Beat != 2 || notes[0].Duration != 1 {
		t.Errorf("note = (%v, %v), want (2, 1)", notes[0].Beat, notes[0].Duration)
	}
}

func TestMidBarSignatureWaitsForBoundary(t *testing.T) {
	s := &song.Song{
		Tracks: []song.Track{{
			Index: 0,
			Notes: []song.Note{{Key: 60, Beat: 0, Duration: 8}},
		}},
		TimeSignatureChanges: []song.TimeSignature{
			{Numerator: 3, Denominator: 4, Beat: 2.4}, // rounds to 2, mid-bar
		},
	}
	bs := Generate(s)
	if bs[0].TimeSignature.Numerator != 4 {
		t.Errorf("bar 0 should stay 4/4, got %+v", bs[0].TimeSignature)
	}
	if bs[1].TimeSignature.Numerator != 3 {
		t.Errorf("bar 1 should pick up 3/4, got %+v", bs[1].TimeSignature)
	}
}

func TestLastSignatureInBarGoverns(t *testing.T) {
	s := &song.Song{
		Tracks: []song.Track{{
			Index: 0,
			Notes: []song.Note{{Key: 60, Beat: 0, Duration: 8}},
		}},
		TimeSignatureChanges: []song.TimeSignature{
			{Numerator: 3, Denominator: 4, Beat: 1.6},
			{Numerator: 6, Denominator: 8, Beat: 2.2}, // both round into bar 0; later wins
		},
	}
	bs := Generate(s)
	sig := bs[1].TimeSignature
	if sig.Numerator != 6 || sig.Denominator != 8 {
		t.Errorf("bar 1 signature = %d/%d, want 6/8", sig.Numerator, sig.Denominator)
	}
}

func TestGenerateSkipsDegenerateMeters(t *testing.T) {
	s := &song.Song{
		Tracks: []song.Track{{
			Index: 0,
			Notes: []song.Note{{Key: 60, Beat: 0, Duration: 1}},
		}},
		TimeSignatureChanges: []song.TimeSignature{
			{Numerator: 0, Denominator: 4, Beat: 0},
			{Numerator: 4, Denominator: 0, Beat: 0},
		},
	}
	bs := Generate(s)
	// Both signatures have no bar length and are ignored; the song splits
	// under the 4/4 default instead of looping on a zero-width bar.
	if len(bs) != 1 {
		t.Fatalf("got %d bars, want 1", len(bs))
	}
	sig := bs[0].TimeSignature
	if sig.Numerator != 4 || sig.Denominator != 4 {
		t.Errorf("bar 0 signature = %d/%d, want 4/4", sig.Numerator, sig.Denominator)
	}
	if len(bs[0].Tracks[0].Notes) != 1 {
		t.Errorf("bar 0 notes = %+v", bs[0].Tracks[0].Notes)
	}
}

func TestStartingTempoCarry(t *testing.T) {
	s := &song.Song{
		Tracks: []song.Track{{
			Index: 0,
			Notes: []song.Note{{Key: 60, Beat: 0, Duration: 8}},
		}},
		TempoChanges: []song.TempoChange{
			{Beat: 0, BPM: 100},
			{Beat: 2, BPM: 70},
		},
	}
	bs := Generate(s)
	if bs[0].StartingTempo != song.DefaultBPM {
		t.Errorf("bar 0 StartingTempo = %v, want default (changes land inside the bar)", bs[0].StartingTempo)
	}
	if len(bs[0].TempoChanges) != 2 {
		t.Fatalf("bar 0 tempo changes = %+v", bs[0].TempoChanges)
	}
	if bs[1].StartingTempo != 70 {
		t.Errorf("bar 1 StartingTempo = %v, want 70", bs[1].StartingTempo)
	}
}

func TestRoundTrip(t *testing.T) {
	src := &song.Song{
		Tracks: []song.Track{
			{
				Index: 0,
				Name:  "melody",
				Notes: []song.Note{
					{Channel: 0, Key: 60, Velocity: 90, Beat: 0.5, Duration: 0.5},
					{Channel: 0, Key: 64, Velocity: 90, Beat: 8.5, Duration: 1},
					{Channel: 0, Key: 67, Velocity: 70, Beat: 9.75, Duration: 0.25},
				},
			},
			{
				Index: 2,
				Name:  "bass",
				Notes: []song.Note{{Channel: 1, Key: 36, Velocity: 110, Beat: 4, Duration: 4}},
			},
		},
		TempoChanges: []song.TempoChange{
			{Beat: 0, BPM: 120},
			{Beat: 5, BPM: 90},
			{Beat: 9.5, BPM: 60},
		},
		TimeSignatureChanges: []song.TimeSignature{
			{Numerator: 4, Denominator: 4, Beat: 0},
			{Numerator: 6, Denominator: 8, Beat: 8},
		},
	}

	got := Reassemble(Generate(src))

	if len(got.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(got.Tracks))
	}
	for ti, want := range src.Tracks {
		tr := got.Tracks[ti]
		if tr.Index != want.Index || tr.Name != want.Name {
			t.Errorf("track %d identity = (%d, %q), want (%d, %q)", ti, tr.Index, tr.Name, want.Index, want.Name)
		}
		if len(tr.Notes) != len(want.Notes) {
			t.Fatalf("track %d has %d notes, want %d", ti, len(tr.Notes), len(want.Notes))
		}
		for ni, wn := range want.Notes {
			n := tr.Notes[ni]
			if n.Channel != wn.Channel || n.Key != wn.Key || n.Velocity != wn.Velocity {
				t.Errorf("track %d note %d = %+v, want %+v", ti, ni, n, wn)
			}
			if math.Abs(n.Beat-wn.Beat) > 1e-9 || math.Abs(n.Duration-wn.Duration) > 1e-9 {
				t.Errorf("track %d note %d timing = (%v, %v), want (%v, %v)", ti, ni, n.Beat, n.Duration, wn.Beat, wn.Duration)
			}
		}
	}

	if len(got.TempoChanges) != len(src.TempoChanges) {
		t.Fatalf("tempo changes = %+v", got.TempoChanges)
	}
	for i, want := range src.TempoChanges {
		tc := got.TempoChanges[i]
		if math.Abs(tc.Beat-want.Beat) > 1e-9 || math.Abs(tc.BPM-want.BPM) > 1e-9 {
			t.Errorf("tempo change %d = %+v, want %+v", i, tc, want)
		}
	}

	if len(got.TimeSignatureChanges) != 2 {
		t.Fatalf("signature changes = %+v", got.TimeSignatureChanges)
	}
	for i, want := range src.TimeSignatureChanges {
		ts := got.TimeSignatureChanges[i]
		if ts.Numerator != want.Numerator || ts.Denominator != want.Denominator || math.Abs(ts.Beat-want.Beat) > 1e-9 {
			t.Errorf("signature change %d = %+v, want %+v", i, ts, want)
		}
	}
}
