package hub

import (
	"context"
	"log/slog"

	"github.com/jumpman786/omcgill/internal/profile"
	"github.com/jumpman786/omcgill/pkg/protocol"
)

// missedHeartbeats is how many heartbeat intervals of silence mark a queued
// user as gone even when their socket has not closed yet.
const missedHeartbeats = 3

// findCompatiblePartner scans the modality queue in randomized order for a
// waiting user compatible with the requester. The winning candidate is
// removed from the queue. Returns "" when nobody fits, in which case the
// caller enqueues the requester.
//
// Profile lookups fail open: when the store is unavailable (or a profile is
// missing) the candidate is accepted as if both filters were Any/Any, which
// keeps the matchmaker live through storage outages.
func (h *Hub) findCompatiblePartner(ctx context.Context, requester *UserState, modality protocol.Modality) string {
	// Defensive: a requester must never sit in a queue while matching.
	h.queues.remove(requester.ID)

	staleBefore := h.now().Add(-missedHeartbeats * h.cfg.HeartbeatInterval)
	for _, candidateID := range h.queues.shuffled(modality) {
		if candidateID == requester.ID {
			continue
		}

		candidate, ok := h.registry.get(candidateID)
		if !ok || candidate.Conn == nil || candidate.LastSeen.Before(staleBefore) {
			// Purge entries whose user has no live connection or has
			// gone silent past the heartbeat deadline.
			h.queues.removeFrom(candidateID, modality)
			h.logger.Debug("Purged dead queue entry", slog.String("userID", candidateID))
			continue
		}

		if !h.filtersCompatible(ctx, requester, candidate) {
			continue
		}

		h.queues.removeFrom(candidateID, modality)
		return candidateID
	}
	return ""
}

// filtersCompatible enforces both users' non-Any filter fields against the
// other's profile.
func (h *Hub) filtersCompatible(ctx context.Context, a, b *UserState) bool {
	if a.Filter.IsAny() && b.Filter.IsAny() {
		return true
	}

	attrsA, errA := h.profiles.Attributes(ctx, a.ID)
	attrsB, errB := h.profiles.Attributes(ctx, b.ID)
	if errA != nil || errB != nil {
		// Fail open on transient store errors and on missing profiles.
		h.logger.Debug("Profile lookup failed, matching without filters",
			slog.String("a", a.ID), slog.String("b", b.ID),
			slog.Any("errA", errA), slog.Any("errB", errB))
		return true
	}

	return filterMatches(a.Filter, attrsB) && filterMatches(b.Filter, attrsA)
}

func filterMatches(f protocol.Filter, attrs profile.Attributes) bool {
	if f.Faculty != "" && f.Faculty != protocol.FilterAny && f.Faculty != attrs.Faculty {
		return false
	}
	if f.YearOfStudy != "" && f.YearOfStudy != protocol.FilterAny && f.YearOfStudy != attrs.YearOfStudy {
		return false
	}
	return true
}
