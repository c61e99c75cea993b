package brightdata

import "strings"

const activitySuffix = "recent-activity/all/"

// ProfileURL strips any activity-feed suffix from a LinkedIn profile URL.
func ProfileURL(profileURL string) string {
	base, _, _ := strings.Cut(profileURL, "recent-activity")
	return base
}

// ActivityURL returns the canonical activity-feed URL of a profile.
func ActivityURL(profileURL string) string {
	base := ProfileURL(profileURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + activitySuffix
}
