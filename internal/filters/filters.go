// Package filters implements the transforms that run between import and
// export. A filter takes a song and returns a song; most mutate in place
// and return their argument. Filters run strictly sequentially, each
// consuming the representation left by the previous one.
package filters

import "github.com/cbegin/midishape-go/internal/song"

// Filter transforms a song. It may mutate its argument in place or return
// a fresh one.
type Filter func(*song.Song) (*song.Song, error)

// Identity returns the song unchanged.
func Identity(s *song.Song) (*song.Song, error) {
	return s, nil
}

// ThinChords keeps only the highest note of every group of notes that
// start together on the same channel within a track.
func ThinChords(s *song.Song) (*song.Song, error) {
	for ti := range s.Tracks {
		t := &s.Tracks[ti]
		t.SortNotes()
		var kept []song.Note
		for i, n := range t.Notes {
			if chordTopped(t.Notes, i) {
				continue
			}
			kept = append(kept, n)
		}
		t.Notes = kept
	}
	return s, nil
}

// chordTopped reports whether note i is shadowed by a higher (or equal,
// later) note starting at the same beat on the same channel.
func chordTopped(notes []song.Note, i int) bool {
	n := notes[i]
	for j, m := range notes {
		if j == i || m.Channel != n.Channel || !beatsEqual(m.Beat, n.Beat) {
			continue
		}
		if m.Key > n.Key || (m.Key == n.Key && j < i) {
			return true
		}
	}
	return false
}
