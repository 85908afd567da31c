// Package song provides the Song domain entity and URL classification.
package song

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrInvalidYouTubeURL = errors.New("invalid youtube url")
)

// Kind represents the media kind of a song. It decides which backend plays it.
type Kind string

const (
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindYouTube Kind = "youtube"
)

// YouTubeTitle is the display title given to every YouTube entry.
const YouTubeTitle = "YouTube Video"

const (
	untitledAudio = "Untitled Audio"
	untitledVideo = "Untitled Video"
	videoIDLength = 11
)

var youtubeIDPattern = regexp.MustCompile(`^.*(youtu.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

var videoExtensions = map[string]bool{
	"mp4":  true,
	"webm": true,
	"mov":  true,
}

// Song represents a playlist entry.
// Two songs are the same song iff their URLs are equal.
type Song struct {
	URL       string `json:"url"`                 // Playable resource or watch-page URL
	Title     string `json:"title"`               // Display title
	Kind      Kind   `json:"kind"`                // Media kind
	VideoID   string `json:"videoId,omitempty"`   // YouTube only
	Thumbnail string `json:"thumbnail,omitempty"` // YouTube only
}

// New validates raw and builds a Song from it.
// Returns ErrInvalidURL for empty or unparseable input and ErrInvalidYouTubeURL
// when a YouTube URL carries no 11-character video ID.
func New(raw string) (Song, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Song{}, ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Song{}, errors.Mark(errors.Wrapf(err, "parse %q", raw), ErrInvalidURL)
	}
	if !isAbsolute(u) {
		return Song{}, errors.Wrapf(ErrInvalidURL, "%q is not an absolute url", raw)
	}

	switch classify(u) {
	case KindYouTube:
		id, ok := ExtractYouTubeID(raw)
		if !ok {
			return Song{}, errors.Wrapf(ErrInvalidYouTubeURL, "no video id in %q", raw)
		}
		return Song{
			URL:       raw,
			Title:     YouTubeTitle,
			Kind:      KindYouTube,
			VideoID:   id,
			Thumbnail: ThumbnailURL(id),
		}, nil
	case KindVideo:
		return Song{URL: raw, Title: titleFromPath(u, untitledVideo), Kind: KindVideo}, nil
	default:
		return Song{URL: raw, Title: titleFromPath(u, untitledAudio), Kind: KindAudio}, nil
	}
}

// isAbsolute reports whether u has a scheme. Web URLs also need a host;
// other schemes such as file:///music/a.mp3 may leave it empty.
func isAbsolute(u *url.URL) bool {
	switch strings.ToLower(u.Scheme) {
	case "":
		return false
	case "http", "https":
		return u.Host != ""
	default:
		return true
	}
}

// Classify maps a URL to a media kind. Unparseable input is audio.
func Classify(raw string) Kind {
	u, err := url.Parse(raw)
	if err != nil {
		return KindAudio
	}
	return classify(u)
}

func classify(u *url.URL) Kind {
	if isYouTubeHost(u.Hostname()) {
		return KindYouTube
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if videoExtensions[ext] {
		return KindVideo
	}
	return KindAudio
}

// IsYouTubeURL reports whether the host of raw contains youtube.com or youtu.be.
func IsYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return isYouTubeHost(u.Hostname())
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}

// ExtractYouTubeID returns the 11-character video ID embedded in raw.
func ExtractYouTubeID(raw string) (string, bool) {
	m := youtubeIDPattern.FindStringSubmatch(raw)
	if m == nil || len(m[2]) != videoIDLength {
		return "", false
	}
	return m[2], true
}

// ThumbnailURL returns the medium quality thumbnail for a video ID.
func ThumbnailURL(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/mqdefault.jpg"
}

// Same reports whether s and other share an identity.
func (s Song) Same(other Song) bool {
	return s.URL == other.URL
}

func titleFromPath(u *url.URL, fallback string) string {
	segments := strings.Split(u.Path, "/")
	if last := segments[len(segments)-1]; last != "" {
		return last
	}
	return fallback
}
