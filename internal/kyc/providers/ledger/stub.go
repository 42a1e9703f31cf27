package ledger

import (
	"context"
	"fmt"
	"sync"

	"kycgate/internal/kyc/hashing"
	"kycgate/internal/kyc/ports"
	id "kycgate/pkg/domain"
)

// Stub is an in-process ledger. Receipts are deterministic: a fixed receipt
// when one is set, otherwise a tx hash derived from the payload and an
// incrementing block number.
type Stub struct {
	mu       sync.Mutex
	err      error
	fixed    *ports.LedgerReceipt
	block    uint64
	verified map[id.UserID]bool
	payloads []ports.LedgerPayload
}

func NewStub() *Stub {
	return &Stub{block: 1, verified: map[id.UserID]bool{}}
}

// SetError makes Register and Health fail until cleared with nil.
func (s *Stub) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetReceipt pins the tx hash and block number returned by Register.
func (s *Stub) SetReceipt(txHash string, block uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixed = &ports.LedgerReceipt{TxHash: txHash, BlockNumber: block}
}

func (s *Stub) Register(_ context.Context, userID id.UserID, payload ports.LedgerPayload) (*ports.LedgerReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	vh, err := hashing.VerificationHash(payload)
	if err != nil {
		return nil, err
	}
	s.payloads = append(s.payloads, payload)
	s.verified[userID] = true

	if s.fixed != nil {
		r := *s.fixed
		r.VerificationHash = vh
		return &r, nil
	}
	s.block++
	return &ports.LedgerReceipt{
		TxHash:           hashing.Keccak256([]byte(fmt.Sprintf("%s:%d", vh, s.block))),
		BlockNumber:      s.block,
		VerificationHash: vh,
	}, nil
}

func (s *Stub) IsVerified(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified[userID], nil
}

func (s *Stub) Health(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Payloads returns every payload registered so far.
func (s *Stub) Payloads() []ports.LedgerPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.LedgerPayload(nil), s.payloads...)
}
