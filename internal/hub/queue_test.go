package hub

import (
	"sort"
	"testing"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

func TestQueueEnqueueIsExclusive(t *testing.T) {
	q := newWaitingQueues()

	q.enqueue("u1", protocol.ModalityText)
	if !q.contains("u1", protocol.ModalityText) {
		t.Fatal("expected u1 in text queue")
	}

	q.enqueue("u1", protocol.ModalityVideo)
	if q.contains("u1", protocol.ModalityText) {
		t.Error("u1 still in text queue after switching to video")
	}
	if !q.contains("u1", protocol.ModalityVideo) {
		t.Error("u1 missing from video queue")
	}
}

func TestQueueEnqueueTwiceKeepsSingleEntry(t *testing.T) {
	q := newWaitingQueues()
	q.enqueue("u1", protocol.ModalityText)
	q.enqueue("u1", protocol.ModalityText)

	if got := q.len(protocol.ModalityText); got != 1 {
		t.Errorf("expected 1 entry, got %d", got)
	}
}

func TestQueueRemovePurgesEverywhere(t *testing.T) {
	q := newWaitingQueues()
	q.enqueue("u1", protocol.ModalityText)
	q.enqueue("u2", protocol.ModalityText)

	q.remove("u1")
	if q.contains("u1", protocol.ModalityText) {
		t.Error("u1 still present after remove")
	}
	if !q.contains("u2", protocol.ModalityText) {
		t.Error("remove touched an unrelated entry")
	}
}

func TestQueueShuffledIsASnapshot(t *testing.T) {
	q := newWaitingQueues()
	ids := []string{"u1", "u2", "u3", "u4"}
	for _, id := range ids {
		q.enqueue(id, protocol.ModalityText)
	}

	snapshot := q.shuffled(protocol.ModalityText)
	if len(snapshot) != len(ids) {
		t.Fatalf("expected %d entries, got %d", len(ids), len(snapshot))
	}
	sort.Strings(snapshot)
	for i, id := range ids {
		if snapshot[i] != id {
			t.Errorf("snapshot missing %s", id)
		}
	}

	// Mutating the snapshot must not touch the queue.
	snapshot[0] = "mutated"
	if !q.contains("u1", protocol.ModalityText) {
		t.Error("mutating the snapshot corrupted the queue")
	}
}
