// Package playlist provides the Playlist domain entity.
package playlist

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/spinbox/internal/domain/song"
)

// ErrIndexOutOfRange is returned for positions outside the playlist.
var ErrIndexOutOfRange = errors.New("playlist index out of range")

// Playlist is an ordered list of songs. Insertion order is playback order.
// Duplicates are allowed; lookups key on the song URL.
type Playlist struct {
	mu    sync.RWMutex
	songs []song.Song
}

// New creates a playlist holding the given songs.
func New(songs ...song.Song) *Playlist {
	p := &Playlist{songs: make([]song.Song, 0, len(songs))}
	p.songs = append(p.songs, songs...)
	return p
}

// Append adds a song to the end of the playlist and returns its index.
func (p *Playlist) Append(s song.Song) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.songs = append(p.songs, s)
	return len(p.songs) - 1
}

// Remove splices out the song at index and returns it.
func (p *Playlist) Remove(index int) (song.Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.songs) {
		return song.Song{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", index, len(p.songs))
	}
	removed := p.songs[index]
	p.songs = append(p.songs[:index:index], p.songs[index+1:]...)
	return removed, nil
}

// At returns the song at index.
func (p *Playlist) At(index int) (song.Song, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if index < 0 || index >= len(p.songs) {
		return song.Song{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", index, len(p.songs))
	}
	return p.songs[index], nil
}

// IndexOf returns the position of the first song with the given URL, or -1.
func (p *Playlist) IndexOf(url string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for i, s := range p.songs {
		if s.URL == url {
			return i
		}
	}
	return -1
}

// Len returns the number of songs.
func (p *Playlist) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.songs)
}

// Songs returns a copy of the songs in playback order.
func (p *Playlist) Songs() []song.Song {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]song.Song, len(p.songs))
	copy(result, p.songs)
	return result
}

// URLs returns the URLs of all songs in playback order.
func (p *Playlist) URLs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	urls := make([]string, len(p.songs))
	for i, s := range p.songs {
		urls[i] = s.URL
	}
	return urls
}
