package hub

import (
	"math/rand/v2"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

// waitingQueues holds the per-modality ordered sets of users seeking a
// partner. A user appears in at most one queue. Access runs under the hub's
// exclusive section.
type waitingQueues struct {
	byModality map[protocol.Modality][]string
}

func newWaitingQueues() *waitingQueues {
	return &waitingQueues{
		byModality: map[protocol.Modality][]string{
			protocol.ModalityText:  {},
			protocol.ModalityVideo: {},
		},
	}
}

// enqueue appends the user to the modality queue, removing them from any
// other queue first.
func (q *waitingQueues) enqueue(userID string, modality protocol.Modality) {
	q.remove(userID)
	q.byModality[modality] = append(q.byModality[modality], userID)
}

// remove purges the user from every queue.
func (q *waitingQueues) remove(userID string) {
	for modality, ids := range q.byModality {
		q.byModality[modality] = deleteID(ids, userID)
	}
}

// removeFrom purges the user from one modality queue.
func (q *waitingQueues) removeFrom(userID string, modality protocol.Modality) {
	q.byModality[modality] = deleteID(q.byModality[modality], userID)
}

func (q *waitingQueues) contains(userID string, modality protocol.Modality) bool {
	for _, id := range q.byModality[modality] {
		if id == userID {
			return true
		}
	}
	return false
}

func (q *waitingQueues) len(modality protocol.Modality) int {
	return len(q.byModality[modality])
}

// shuffled returns a Fisher-Yates shuffled snapshot of the modality queue.
// Randomized iteration spreads matches and avoids starving late arrivals.
func (q *waitingQueues) shuffled(modality protocol.Modality) []string {
	src := q.byModality[modality]
	snapshot := make([]string, len(src))
	copy(snapshot, src)
	rand.Shuffle(len(snapshot), func(i, j int) {
		snapshot[i], snapshot[j] = snapshot[j], snapshot[i]
	})
	return snapshot
}

func deleteID(ids []string, userID string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}
