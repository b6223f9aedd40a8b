package review

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
)

// ReceiptStore reads and writes review receipts under the runtime state
// dir, keyed by task or epic id plus receipt type — receipts live beside
// runtime state because, like claims and evidence, they are reproducible
// from a review run and must not be git-tracked.
type ReceiptStore struct {
	Paths atomicio.Paths
}

// NewReceiptStore builds a ReceiptStore rooted at paths.
func NewReceiptStore(paths atomicio.Paths) *ReceiptStore {
	return &ReceiptStore{Paths: paths}
}

func (s *ReceiptStore) receiptFile(ownerID string, t domain.ReceiptType) string {
	return filepath.Join(s.Paths.RuntimeStateDir(), "receipts", ownerID+"."+string(t)+".json")
}

// Load reads the receipt for ownerID/type, reporting whether one exists.
func (s *ReceiptStore) Load(ownerID string, t domain.ReceiptType) (domain.ReviewReceipt, bool, error) {
	var r domain.ReviewReceipt
	path := s.receiptFile(ownerID, t)
	if !atomicio.Exists(path) {
		return r, false, nil
	}
	if err := atomicio.ReadJSON(path, &r); err != nil {
		return r, false, err
	}
	return r, true, nil
}

// Save atomically writes a receipt. Receipts are only ever written after a
// verdict has been successfully extracted from a completed review — a
// sandbox failure or a transcript with no verdict tag must never reach
// here.
func (s *ReceiptStore) Save(ownerID string, r domain.ReviewReceipt) error {
	return atomicio.WriteJSON(s.receiptFile(ownerID, r.Type), r)
}

// Clear removes any existing receipt for ownerID/type. Called proactively
// on any review failure so a stale SHIP receipt from a prior run can never
// be mistaken for evidence of the current state.
func (s *ReceiptStore) Clear(ownerID string, t domain.ReceiptType) error {
	err := os.Remove(s.receiptFile(ownerID, t))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// NewReceipt builds a receipt from a completed, verdict-bearing review run.
func NewReceipt(t domain.ReceiptType, ownerID, mode string, verdict domain.ReviewVerdict, sessionID, transcript string, iteration int) domain.ReviewReceipt {
	return domain.ReviewReceipt{
		Type:      t,
		ID:        ownerID,
		Mode:      mode,
		Verdict:   verdict,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Review:    transcript,
		Iteration: iteration,
	}
}
