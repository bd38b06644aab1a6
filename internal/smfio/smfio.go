// Package smfio converts between standard MIDI files (decoded by the gomidi
// codec) and the beat-indexed song representation. The importer repairs
// malformed note pairing locally and never aborts on bad input; the
// exporter is the exact inverse of the importer's tick accumulation.
package smfio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/midishape-go/internal/song"
)

// DefaultTicksPerBeat is the resolution used when producing a file from
// scratch.
const DefaultTicksPerBeat = 96

// ErrInvariant reports a broken accumulation invariant inside the importer.
// Unlike malformed input, which is repaired locally, this indicates a
// programming fault and propagates to the caller.
var ErrInvariant = errors.New("smfio: note pairing invariant violated")

type Option func(*config)

type config struct {
	log          logrus.FieldLogger
	ticksPerBeat int
}

func defaultConfig() config {
	return config{
		log:          logrus.StandardLogger(),
		ticksPerBeat: DefaultTicksPerBeat,
	}
}

// WithLogger routes anomaly diagnostics (unmatched note-offs, degenerate
// notes, look-behind repairs) to the given structured logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) { c.log = log }
}

// WithTicksPerBeat overrides the export resolution.
func WithTicksPerBeat(tpb int) Option {
	return func(c *config) { c.ticksPerBeat = tpb }
}

type noteKey struct {
	key     int
	channel int
}

// Import builds a Song from a decoded MIDI file. Note-on/off pairing runs
// per track with an open-notes table keyed by pitch and channel; tempo,
// time-signature and program-change events accumulate file-globally on a
// single running tick counter that spans all tracks in order.
func Import(mid *smf.SMF, opts ...Option) (*song.Song, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	metric, ok := mid.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("smfio: unsupported time format %v (need metric ticks)", mid.TimeFormat)
	}
	tpb := float64(metric)

	s := &song.Song{
		ChannelInstrument: make(map[int]int),
	}

	for i, track := range mid.Tracks {
		tr, err := importTrack(i, track, tpb, cfg.log)
		if err != nil {
			return nil, err
		}
		s.Tracks = append(s.Tracks, tr)
	}

	scanFileGlobals(mid, tpb, s)

	s.DropEmptyTracks()
	return s, nil
}

type openNote struct {
	note song.Note
	seq  int
}

// importTrack pairs note events within one track. Open notes live only in
// the look-behind table and are committed to the output when they close;
// a degenerate note discarded during look-behind repair is simply never
// committed.
func importTrack(index int, track smf.Track, tpb float64, log logrus.FieldLogger) (song.Track, error) {
	out := song.Track{Index: index}
	open := make(map[noteKey]openNote)
	seq := 0

	var absTicks uint64
	for _, ev := range track {
		absTicks += uint64(ev.Delta)
		beat := float64(absTicks) / tpb

		var ch, key, vel uint8
		var name string
		switch {
		case ev.Message.GetNoteStart(&ch, &key, &vel):
			k := noteKey{int(key), int(ch)}
			if behind, ok := open[k]; ok {
				// A second note-on for a key that is already sounding.
				// Close the earlier note here if that gives it positive
				// length; otherwise discard it as degenerate.
				dur := beat - behind.note.Beat
				if dur > 0 {
					behind.note.Duration = dur
					out.Notes = append(out.Notes, behind.note)
					log.WithFields(logrus.Fields{
						"track": index, "key": k.key, "channel": k.channel, "beat": behind.note.Beat,
					}).Debug("closed overlapping note at next note-on")
				} else {
					log.WithFields(logrus.Fields{
						"track": index, "key": k.key, "channel": k.channel, "beat": behind.note.Beat,
					}).Debug("dropped degenerate zero-length note")
				}
			}
			open[k] = openNote{
				note: song.Note{
					Channel:  int(ch),
					Key:      int(key),
					Velocity: int(vel),
					Beat:     beat,
				},
				seq: seq,
			}
			seq++

		case ev.Message.GetNoteEnd(&ch, &key):
			k := noteKey{int(key), int(ch)}
			opened, ok := open[k]
			if !ok {
				log.WithFields(logrus.Fields{
					"track": index, "key": k.key, "channel": k.channel, "beat": beat,
				}).Debug("note-off without matching note-on; ignoring")
				continue
			}
			delete(open, k)
			if opened.note.Duration != 0 {
				// An open note must not have been closed already.
				return song.Track{}, fmt.Errorf("%w: track %d key %d channel %d at beat %v",
					ErrInvariant, index, k.key, k.channel, beat)
			}
			opened.note.Duration = beat - opened.note.Beat
			if opened.note.Duration < 0 {
				opened.note.Duration = 0
			}
			out.Notes = append(out.Notes, opened.note)

		case ev.Message.GetMetaTrackName(&name):
			if out.Name == "" {
				out.Name = name
			}
		}
	}

	// Notes left open at end of track keep zero duration. Commit them in
	// the order they were opened.
	leftovers := make([]openNote, 0, len(open))
	for _, on := range open {
		leftovers = append(leftovers, on)
	}
	sort.Slice(leftovers, func(i, j int) bool { return leftovers[i].seq < leftovers[j].seq })
	for _, on := range leftovers {
		out.Notes = append(out.Notes, on.note)
	}
	out.SortNotes()
	return out, nil
}

// scanFileGlobals collects tempo, time-signature and program-change events.
// The tick counter deliberately runs across track boundaries without
// resetting; these lists are file-scoped, not per track.
func scanFileGlobals(mid *smf.SMF, tpb float64, s *song.Song) {
	var absTicks uint64
	for _, track := range mid.Tracks {
		for _, ev := range track {
			absTicks += uint64(ev.Delta)
			beat := float64(absTicks) / tpb

			var bpm float64
			var num, denom, cpt, dsq uint8
			var ch, prog uint8
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				s.TempoChanges = append(s.TempoChanges, song.TempoChange{Beat: beat, BPM: bpm})
			case ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsq):
				s.TimeSignatureChanges = append(s.TimeSignatureChanges, song.TimeSignature{
					Numerator:   int(num),
					Denominator: int(denom),
					Beat:        beat,
				})
			case ev.Message.GetProgramChange(&ch, &prog):
				// Last occurrence across the whole file wins.
				s.ChannelInstrument[int(ch)] = int(prog)
			}
		}
	}
	s.SortTempoChanges()
	s.TempoChanges = dedupeTempo(s.TempoChanges)
}

// dedupeTempo collapses consecutive entries with identical BPM, keeping the
// earliest. The input must be sorted by beat.
func dedupeTempo(changes []song.TempoChange) []song.TempoChange {
	var out []song.TempoChange
	slider := -1.0
	for _, tc := range changes {
		if tc.BPM != slider {
			slider = tc.BPM
			out = append(out, tc)
		}
	}
	return out
}

// Export converts a Song back to a standard MIDI file: a dedicated tempo
// track first, then one track per music track in index order.
func Export(s *song.Song, opts ...Option) (*smf.SMF, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ticksPerBeat <= 0 {
		return nil, fmt.Errorf("smfio: ticks per beat must be positive, got %d", cfg.ticksPerBeat)
	}
	tpb := cfg.ticksPerBeat

	mid := smf.New()
	mid.TimeFormat = smf.MetricTicks(tpb)

	if err := mid.Add(tempoTrack(s, tpb)); err != nil {
		return nil, fmt.Errorf("smfio: tempo track: %w", err)
	}
	for i := range s.Tracks {
		tr, err := exportTrack(&s.Tracks[i], s.ChannelInstrument, tpb)
		if err != nil {
			return nil, err
		}
		if err := mid.Add(tr); err != nil {
			return nil, fmt.Errorf("smfio: track %d: %w", s.Tracks[i].Index, err)
		}
	}
	return mid, nil
}

func tempoTrack(s *song.Song, tpb int) smf.Track {
	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("Tempo changes"))

	changes := make([]song.TempoChange, len(s.TempoChanges))
	copy(changes, s.TempoChanges)
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Beat < changes[j].Beat })

	prev := uint32(0)
	for _, tc := range changes {
		now := uint32(tc.Beat * float64(tpb))
		track.Add(now-prev, smf.MetaTempo(tc.BPM))
		prev = now
	}
	track.Close(0)
	return track
}

type timelineEvent struct {
	note *song.Note
	beat float64
	on   bool
}

func exportTrack(t *song.Track, instruments map[int]int, tpb int) (smf.Track, error) {
	var track smf.Track

	name := t.Name
	if name == "" {
		name = fmt.Sprintf("Unknown Track %d", t.Index)
	}
	track.Add(0, smf.MetaTrackSequenceName(name))

	if ch := t.MostUsedChannel(); ch >= 0 {
		if prog, ok := instruments[ch]; ok {
			track.Add(0, midi.ProgramChange(uint8(ch), uint8(prog)))
		}
	}

	sorted := t.Clone()
	sorted.SortNotes()
	events := make([]timelineEvent, 0, 2*len(sorted.Notes))
	for i := range sorted.Notes {
		n := &sorted.Notes[i]
		events = append(events,
			timelineEvent{note: n, beat: n.Beat, on: true},
			timelineEvent{note: n, beat: n.Beat + n.Duration, on: false},
		)
	}
	sortTimeline(events)

	prev := uint32(0)
	for _, ev := range events {
		now := uint32(ev.beat * float64(tpb))
		delta := now - prev
		prev = now
		if ev.on {
			track.Add(delta, midi.NoteOn(uint8(ev.note.Channel), uint8(ev.note.Key), uint8(ev.note.Velocity)))
		} else {
			track.Add(delta, midi.NoteOff(uint8(ev.note.Channel), uint8(ev.note.Key)))
		}
	}
	track.Close(0)
	return track, nil
}

func sortTimeline(events []timelineEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].beat < events[j].beat
	})
}
