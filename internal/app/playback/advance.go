package playback

import "github.com/osa030/spinbox/internal/domain/song"

// Mode holds the flags that alter advance-on-end selection.
type Mode struct {
	Shuffle bool
	Loop    bool
}

// NextSong picks the song to play after current ends naturally.
// pick returns a uniform index in [0, n). The second return value is false when
// playback should stop.
func NextSong(list []song.Song, current song.Song, mode Mode, pick func(n int) int) (song.Song, bool) {
	index := -1
	for i, s := range list {
		if s.Same(current) {
			index = i
			break
		}
	}
	if index < 0 {
		return song.Song{}, false
	}

	if mode.Shuffle {
		candidates := make([]song.Song, 0, len(list))
		for _, s := range list {
			if !s.Same(current) {
				candidates = append(candidates, s)
			}
		}
		if len(candidates) == 0 {
			return list[index], true
		}
		return candidates[pick(len(candidates))], true
	}

	if index+1 < len(list) {
		return list[index+1], true
	}
	if mode.Loop {
		return list[0], true
	}
	return song.Song{}, false
}
