package identity

import (
	"reflect"
	"testing"

	"github.com/divvyup/divvy/internal/models"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Alice@Example.COM", "alice@example.com"},
		{"  member-1  ", "member-1"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeSet(t *testing.T) {
	got := NormalizeSet([]string{"B", "a", "", "b", "  A "})
	want := []string{"b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want models.FriendStatus
	}{
		{"pending", models.FriendStatusPending},
		{"friend", models.FriendStatusFriend},
		{"accepted", models.FriendStatusFriend},
		{"rejected", models.FriendStatusRejected},
		{"declined", models.FriendStatusRejected},
		{"", models.FriendStatusLegacyUnset},
		{"something-old", models.FriendStatusLegacyUnset},
		{"  Friend ", models.FriendStatusFriend},
	}
	for _, c := range cases {
		if got := ClassifyStatus(c.raw); got != c.want {
			t.Errorf("ClassifyStatus(%q) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestStatusAccepted(t *testing.T) {
	if !StatusAccepted("friend") {
		t.Error("friend should be accepted")
	}
	if !StatusAccepted("") {
		t.Error("legacy rows should count as accepted")
	}
	if StatusAccepted("pending") {
		t.Error("pending should not be accepted")
	}
	if StatusAccepted("rejected") {
		t.Error("rejected should not be accepted")
	}
}
