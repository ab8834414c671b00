package contest

import (
	"io"
	"strings"
	"time"
)

// DisplayPlaceholder is shown when a submitter has neither a name nor a handle.
const DisplayPlaceholder = "-"

// Identity is the optional submitter information passed to the submit view as
// query parameters. None of it is verified.
type Identity struct {
	FullName   string `json:"full_name"`
	Handle     string `json:"username"`
	ExternalID string `json:"tg_id"`
}

// DisplayName derives the label used in the dashboard:
// "Jane @jdoe", "Jane", "@jdoe" or DisplayPlaceholder.
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(i.FullName)
	handle := strings.TrimPrefix(strings.TrimSpace(i.Handle), "@")
	switch {
	case name != "" && handle != "":
		return name + " @" + handle
	case name != "":
		return name
	case handle != "":
		return "@" + handle
	default:
		return DisplayPlaceholder
	}
}

// Submission is one contest entry as stored.
type Submission struct {
	ID        string `json:"id"`
	Title     string `json:"video_title"`
	TeamCount int    `json:"team_count"`
	VideoURL  string `json:"video_url"`
	Identity
	CreatedAt time.Time `json:"created_at"`

	// VideoKey is the object storage key behind VideoURL.
	VideoKey string `json:"-"`
}

// Location identifies an uploaded object.
type Location struct {
	Key string
	URL string
}

// NewSubmission is the input for recording a submission after its video has
// been uploaded.
type NewSubmission struct {
	Title     string
	TeamCount int
	Location  Location
	Identity  Identity
}

// File is a video handed to the object store.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// IsVideo reports whether contentType belongs to the video category.
func IsVideo(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}

// Participant is a submitter profile keyed by external id.
type Participant struct {
	Identity
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressFunc observes an upload. It is called with the bytes sent so far and
// the total expected; it must not block.
type ProgressFunc func(sent, total int64)
