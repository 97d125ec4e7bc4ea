package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

func ComputeVisitEventHash(prevHash, visitID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, visitID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// ChainEvents numbers and hashes inputs so they continue the chain that ends
// at lastSeq/prevHash.
func ChainEvents(visitID string, lastSeq int, prevHash string, inputs []EventInput) []models.VisitEvent {
	events := make([]models.VisitEvent, 0, len(inputs))
	for _, input := range inputs {
		createdAt := input.CreatedAt.UTC()
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		lastSeq++
		hash := ComputeVisitEventHash(prevHash, visitID, input.Type, input.Payload, createdAt, lastSeq)
		events = append(events, models.VisitEvent{
			EventID:   uuid.NewString(),
			VisitID:   visitID,
			Seq:       lastSeq,
			Type:      input.Type,
			Payload:   input.Payload,
			CreatedAt: createdAt,
			PrevHash:  prevHash,
			Hash:      hash,
		})
		prevHash = hash
	}
	return events
}

// VerifyVisitEvents recomputes the hash chain of one visit's journal.
func VerifyVisitEvents(events []models.VisitEvent) error {
	prev := ""
	for i, event := range events {
		if event.Seq != i+1 {
			return fmt.Errorf("%w: expected seq %d, got %d", ErrEventChainBroken, i+1, event.Seq)
		}
		if event.PrevHash != prev {
			return fmt.Errorf("%w: seq %d prev hash mismatch", ErrEventChainBroken, event.Seq)
		}
		want := ComputeVisitEventHash(prev, event.VisitID, event.Type, event.Payload, event.CreatedAt, event.Seq)
		if event.Hash != want {
			return fmt.Errorf("%w: seq %d hash mismatch", ErrEventChainBroken, event.Seq)
		}
		prev = event.Hash
	}
	return nil
}
