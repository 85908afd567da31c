package notification

import "time"

// Level represents how a notice is presented to the user.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice codes.
const (
	CodeInvalidURL        = "invalid_url"
	CodeInvalidYouTubeURL = "invalid_youtube_url"
	CodeSongAdded         = "song_added"
	CodeSongRemoved       = "song_removed"
	CodePlaybackFailed    = "playback_failed"
	CodePlaylistEmpty     = "playlist_empty"
	CodeShuffleEnabled    = "shuffle_enabled"
	CodeShuffleDisabled   = "shuffle_disabled"
	CodeLoopEnabled       = "loop_enabled"
	CodeLoopDisabled      = "loop_disabled"
)

// Codes returns every notice code.
func Codes() []string {
	return []string{
		CodeInvalidURL,
		CodeInvalidYouTubeURL,
		CodeSongAdded,
		CodeSongRemoved,
		CodePlaybackFailed,
		CodePlaylistEmpty,
		CodeShuffleEnabled,
		CodeShuffleDisabled,
		CodeLoopEnabled,
		CodeLoopDisabled,
	}
}

// LevelOf returns the presentation level for a code.
func LevelOf(code string) Level {
	switch code {
	case CodeInvalidURL, CodeInvalidYouTubeURL, CodePlaybackFailed:
		return LevelError
	case CodeSongAdded, CodeSongRemoved:
		return LevelSuccess
	default:
		return LevelInfo
	}
}

// Notice is a fire-and-forget user-facing message.
type Notice struct {
	Code       string    `json:"code"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	SequenceNo uint64    `json:"sequenceNo"`
	Time       time.Time `json:"time"`
}
