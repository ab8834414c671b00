package contest

import (
	"strings"
)

// ValidateTitle returns the trimmed title or a ValidationError when it is empty.
func ValidateTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	return t, nil
}

// ValidateTeamCount checks 1 <= n <= max. A non-positive max disables the upper bound.
func ValidateTeamCount(n, max int) error {
	if n < 1 {
		return &ValidationError{Field: "team_count", Reason: "must be at least 1"}
	}
	if max > 0 && n > max {
		return &ValidationError{Field: "team_count", Reason: "must not exceed " + itoa(max)}
	}
	return nil
}

// Validate normalises and checks a NewSubmission in place.
func (n *NewSubmission) Validate(maxTeam int) error {
	title, err := ValidateTitle(n.Title)
	if err != nil {
		return err
	}
	n.Title = title
	if err := ValidateTeamCount(n.TeamCount, maxTeam); err != nil {
		return err
	}
	if strings.TrimSpace(n.Location.URL) == "" {
		return &ValidationError{Field: "video", Reason: "upload location is missing"}
	}
	n.Identity.FullName = strings.TrimSpace(n.Identity.FullName)
	n.Identity.Handle = strings.TrimSpace(n.Identity.Handle)
	n.Identity.ExternalID = strings.TrimSpace(n.Identity.ExternalID)
	return nil
}
