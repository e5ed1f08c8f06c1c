package domain

import (
	"net/url"
	"strings"
	"time"
)

// Quality names accepted besides "<N>p" resolutions.
const (
	QualityBest  = "best"
	QualityAudio = "audio"
)

// DownloadRequest is one user request as handed over by the command layer.
type DownloadRequest struct {
	TaskID        string   `json:"task_id,omitempty"`
	URL           string   `json:"url"`
	Quality       string   `json:"quality"`
	PlaylistStart int      `json:"playlist_start,omitempty"`
	PlaylistEnd   int      `json:"playlist_end,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	RequesterID   int64    `json:"requester_id"`
	ChatID        int64    `json:"chat_id"`
	WantSubtitles bool     `json:"want_subtitles,omitempty"`
	// SplitThreshold overrides the default part size in bytes when non-zero.
	SplitThreshold int64 `json:"split_threshold,omitempty"`
}

// IsPlaylist reports whether the request names a playlist range.
func (r DownloadRequest) IsPlaylist() bool {
	return r.PlaylistStart != 0 || r.PlaylistEnd != 0
}

// Validate checks the fields the engine depends on.
func (r DownloadRequest) Validate() error {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return NewDomainError(ErrInvalidURL.Code, ErrInvalidURL.Message, err, false)
	}
	if !ValidQuality(r.Quality) {
		return ErrInvalidQuality
	}
	if r.IsPlaylist() {
		mixed := (r.PlaylistStart < 0) != (r.PlaylistEnd < 0)
		if r.PlaylistStart == 0 || r.PlaylistEnd == 0 || mixed {
			return ErrInvalidRange
		}
	}
	if r.ChatID == 0 {
		return ErrMissingChat
	}
	return nil
}

// ValidQuality accepts "best", "audio" and resolutions like "720p".
func ValidQuality(q string) bool {
	switch q {
	case QualityBest, QualityAudio:
		return true
	}
	if len(q) < 2 || !strings.HasSuffix(q, "p") {
		return false
	}
	for _, c := range q[:len(q)-1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Metadata is what a probe returns about one item or a playlist.
type Metadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	WebpageURL  string  `json:"webpage_url"`
	Extractor   string  `json:"extractor"`
	Duration    float64 `json:"duration"`
	IsLive      bool    `json:"is_live"`

	Filesize       int64 `json:"filesize"`
	FilesizeApprox int64 `json:"filesize_approx"`
	// TBR is the total bitrate in kbit/s.
	TBR float64 `json:"tbr"`
	// ManifestURL is set for HLS formats.
	ManifestURL string `json:"manifest_url"`

	// PlaylistCount is the number of entries when the URL is a playlist.
	PlaylistCount int `json:"playlist_count"`
}

// Length returns Duration as a time.Duration.
func (m Metadata) Length() time.Duration {
	return time.Duration(m.Duration * float64(time.Second))
}

// MediaStream is a downloaded artifact on local disk.
type MediaStream struct {
	Path     string
	Size     int64
	Metadata Metadata
}

// ArtifactRef identifies a delivered message on the transport.
type ArtifactRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// EgressProfile is the credential and proxy used by one attempt.
type EgressProfile struct {
	// CredentialID is the credential file path; empty means anonymous.
	CredentialID string
	// ProxyURL is empty for a direct connection.
	ProxyURL string
}

// PayloadKind is the transport message type.
type PayloadKind string

const (
	PayloadText     PayloadKind = "text"
	PayloadVideo    PayloadKind = "video"
	PayloadAudio    PayloadKind = "audio"
	PayloadPhoto    PayloadKind = "photo"
	PayloadDocument PayloadKind = "document"
)

// Payload is one outgoing transport message.
type Payload struct {
	Kind      PayloadKind
	Text      string
	FilePath  string
	Caption   string
	Thumbnail string
	Duration  time.Duration
}

// Progress is one engine progress sample.
type Progress struct {
	Downloaded int64
	Total      int64
	Speed      float64
	ETA        time.Duration
	Filename   string
}

// Percent returns the completion percentage, or -1 when the total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Downloaded) * 100 / float64(p.Total)
}

// FilterDecision is the answer of a content filter callback.
type FilterDecision struct {
	Accept bool
	Reason string
}

// ExtractOptions configures one engine call.
type ExtractOptions struct {
	Format         string
	CredentialPath string
	ProxyURL       string
	PlaylistItems  string
	OutputDir      string
	WantSubtitles  bool
	// MaxFilesize is passed to the engine so it aborts oversize downloads.
	MaxFilesize int64
	Filter      func(Metadata) FilterDecision
	// Progress is called from the engine goroutine; a non-nil error aborts
	// the download.
	Progress func(Progress) error
}

// WithEgress returns a copy of o configured for profile.
func (o ExtractOptions) WithEgress(p EgressProfile) ExtractOptions {
	o.CredentialPath = p.CredentialID
	o.ProxyURL = p.ProxyURL
	return o
}
