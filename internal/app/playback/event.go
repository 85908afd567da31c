package playback

import "github.com/osa030/spinbox/internal/domain/song"

// EventType represents a playback event type.
type EventType int

const (
	EventSongStarted    EventType = iota // A song was loaded and started
	EventSongEnded                       // The current song reached its natural end
	EventStateChanged                    // Pause/resume or release of the current song
	EventPlaylistEnded                   // Advance-on-end found nothing to play
	EventPlaybackFailed                  // An engine rejected a load or play request
	EventModesChanged                    // Shuffle or loop was toggled
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSongStarted:
		return "song_started"
	case EventSongEnded:
		return "song_ended"
	case EventStateChanged:
		return "state_changed"
	case EventPlaylistEnded:
		return "playlist_ended"
	case EventPlaybackFailed:
		return "playback_failed"
	case EventModesChanged:
		return "modes_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Song  *song.Song // Song the event refers to (nil for some events)
	State State      // Playback state after the event
	Err   error      // Set for EventPlaybackFailed
}
