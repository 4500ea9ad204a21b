// Package identity classifies customer keys and derives display identities.
//
// Orders are addressed by one of two disjoint schemes: authenticated accounts
// (stable UUIDs) and guest families (a human-entered stay id shared by every
// order of one hotel stay or walk-in visit). The key's shape decides which.
package identity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAuthenticatedUser Kind = "authenticated_user"
	KindGuestFamily       Kind = "guest_family"
)

// Identity is the classified form of a customer key.
type Identity struct {
	Kind   Kind
	UserID string // set when Kind == KindAuthenticatedUser
	StayID string // set when Kind == KindGuestFamily, raw spelling
}

var (
	separatorRuns = regexp.MustCompile(`[-_ ]+`)
	digitRun      = regexp.MustCompile(`[0-9]+`)
)

// Classify decides whether key addresses an authenticated account or a guest
// family. Only the canonical 8-4-4-4-12 UUID shape counts as an account;
// uuid.Parse alone is not enough because it also accepts braced and urn
// forms that never appear as account ids.
func Classify(key string) Identity {
	if len(key) == 36 {
		if _, err := uuid.Parse(key); err == nil {
			return Identity{Kind: KindAuthenticatedUser, UserID: key}
		}
	}
	return Identity{Kind: KindGuestFamily, StayID: key}
}

// CanonicalStayID is the canonical form used to group guest orders whose stay
// ids differ only in case or separator usage: case-folded, with runs of '-',
// '_' and spaces collapsed to a single '_'.
func CanonicalStayID(stayID string) string {
	s := strings.ToLower(strings.TrimSpace(stayID))
	return separatorRuns.ReplaceAllString(s, "_")
}

// AccountDisplayName renders an authenticated account: stored name first,
// then the local part of the email, then the account key itself.
func AccountDisplayName(name, email, userID string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			return email[:at]
		}
		return email
	}
	return userID
}

// GuestDisplayName renders a guest family from its stay id. Separator
// characters are normalized to spaces. Ids containing "walkin" render as
// "Walkin <table or digits>", suffixed with the guest's first name when one
// is known. Always returns a non-empty string for a non-empty input.
func GuestDisplayName(stayID, firstName string, tableNumber *int) string {
	normalized := strings.TrimSpace(separatorRuns.ReplaceAllString(stayID, " "))
	if strings.Contains(strings.ToLower(normalized), "walkin") {
		return walkinDisplayName(stayID, firstName, tableNumber)
	}
	if normalized == "" {
		return "Guest"
	}
	return normalized
}

func walkinDisplayName(stayID, firstName string, tableNumber *int) string {
	label := "Walkin"
	if m := digitRun.FindString(stayID); m != "" {
		label += " " + m
	} else if tableNumber != nil {
		label += " " + strconv.Itoa(*tableNumber)
	}
	if firstName = strings.TrimSpace(firstName); firstName != "" {
		label += " (" + firstName + ")"
	}
	return label
}
