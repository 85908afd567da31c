package song

import "net/url"

const embedBase = "https://www.youtube.com/embed/"

// EmbedOptions are the optional iframe parameters appended to an embed URL.
type EmbedOptions struct {
	Origin         string
	HideRelated    bool // rel=0
	HideInfo       bool // showinfo=0
	ModestBranding bool // modestbranding=1
}

// EmbedURL returns the iframe URL for a video ID. The player API is always
// enabled with controls hidden, autoplay on and inline playback.
func EmbedURL(videoID string, opts EmbedOptions) string {
	q := "enablejsapi=1&controls=0&autoplay=1&playsinline=1"
	if opts.Origin != "" {
		q += "&origin=" + url.QueryEscape(opts.Origin)
	}
	if opts.HideRelated {
		q += "&rel=0"
	}
	if opts.HideInfo {
		q += "&showinfo=0"
	}
	if opts.ModestBranding {
		q += "&modestbranding=1"
	}
	return embedBase + url.PathEscape(videoID) + "?" + q
}
