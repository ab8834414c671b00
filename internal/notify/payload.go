package notify

import (
	"time"

	"contest-portal/internal/contest"
)

// EventSubmissionInsert names the only event the portal emits.
const EventSubmissionInsert = "video_contest.insert"

// Row is the relayed copy of a submission.
type Row struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Username   string    `json:"username"`
	VideoTitle string    `json:"video_title"`
	TeamCount  int       `json:"team_count"`
	VideoURL   string    `json:"video_url"`
	TgID       string    `json:"tg_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Payload is the JSON body delivered to relays.
type Payload struct {
	Platform  string    `json:"platform"`
	Event     string    `json:"event"`
	Data      Row       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPayload builds the relay body for s.
func NewPayload(platform string, s contest.Submission, now time.Time) Payload {
	return Payload{
		Platform: platform,
		Event:    EventSubmissionInsert,
		Data: Row{
			ID:         s.ID,
			FullName:   s.FullName,
			Username:   s.Handle,
			VideoTitle: s.Title,
			TeamCount:  s.TeamCount,
			VideoURL:   s.VideoURL,
			TgID:       s.ExternalID,
			CreatedAt:  s.CreatedAt,
		},
		Timestamp: now.UTC(),
	}
}
