// Package domain provides core business rules for the providers bounded context.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// State classifies a provider listing's claim/verification standing.
// It is always derived from the claim attributes, never stored.
type State string

const (
	StateUnclaimed         State = "unclaimed"
	StateClaimedUnverified State = "claimed_unverified"
	StateVerified          State = "verified"
)

// StatusActive is the provider status required for lead delivery.
const StatusActive = "active"

// ClaimAttributes are the raw listing fields that determine the derived State.
type ClaimAttributes struct {
	VerifiedAt      *time.Time
	UserID          *uuid.UUID
	ClaimStatus     string
	IsClaimed       bool
	ClaimedByUserID *uuid.UUID
}

// claimedStatuses are the legacy spellings of a claimed-but-unverified listing.
// Imported data carries all three.
var claimedStatuses = map[string]struct{}{
	"claimed":            {},
	"claimed_unverified": {},
	"claimed-unverified": {},
}

// ComputeState derives the provider state from claim attributes.
// Rules are evaluated in order; the first match wins:
//
//  1. a verification timestamp always dominates,
//  2. a linked account counts as verified,
//  3. recognized claim statuses mark the listing claimed-unverified,
//  4. an explicit "unclaimed" status is overridden by claim markers,
//  5. claim markers alone mark the listing claimed-unverified.
//
// The function is pure and deterministic for identical inputs.
func ComputeState(attrs ClaimAttributes) State {
	if attrs.VerifiedAt != nil {
		return StateVerified
	}
	if attrs.UserID != nil {
		return StateVerified
	}

	status := strings.ToLower(strings.TrimSpace(attrs.ClaimStatus))
	if _, ok := claimedStatuses[status]; ok {
		return StateClaimedUnverified
	}

	hasClaimMarker := attrs.IsClaimed || attrs.ClaimedByUserID != nil

	if status == "unclaimed" {
		if hasClaimMarker {
			return StateClaimedUnverified
		}
		return StateUnclaimed
	}

	if hasClaimMarker {
		return StateClaimedUnverified
	}

	return StateUnclaimed
}

// EligibleForLeads reports whether a listing may receive lead deliveries:
// published, active, and verified.
func EligibleForLeads(isPublished bool, status string, state State) bool {
	return isPublished && status == StatusActive && state == StateVerified
}
