package identity

import "github.com/divvyup/divvy/internal/models"

// ClassifyStatus maps a raw stored friend status string onto the closed
// FriendStatus enumeration. Historical rows carry an empty status, and a few
// carry free-form strings written by old clients; both classify as
// LegacyUnset rather than failing, because the rows are otherwise valid.
func ClassifyStatus(raw string) models.FriendStatus {
	switch Normalize(raw) {
	case string(models.FriendStatusPending):
		return models.FriendStatusPending
	case string(models.FriendStatusFriend), "accepted":
		return models.FriendStatusFriend
	case string(models.FriendStatusRejected), "declined":
		return models.FriendStatusRejected
	default:
		return models.FriendStatusLegacyUnset
	}
}

// StatusAccepted reports whether the raw status should be treated as an
// established friendship for display purposes. Legacy rows predate requests
// entirely, so they count as accepted.
func StatusAccepted(raw string) bool {
	switch ClassifyStatus(raw) {
	case models.FriendStatusFriend, models.FriendStatusLegacyUnset:
		return true
	default:
		return false
	}
}
