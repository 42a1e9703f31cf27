package aries

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kycgate/internal/kyc/ports"
)

// Stub issues credentials without an agent. Attributes are kept for assertions.
type Stub struct {
	mu     sync.Mutex
	err    error
	issued []ports.CredentialAttributes
}

func NewStub() *Stub {
	return &Stub{}
}

// SetError makes Issue fail until cleared with nil.
func (s *Stub) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Stub) Issue(_ context.Context, attrs ports.CredentialAttributes) (*ports.IssuedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.issued = append(s.issued, attrs)
	exchangeID := uuid.NewString()
	return &ports.IssuedCredential{CredentialID: "cred-" + exchangeID, ExchangeID: exchangeID}, nil
}

func (s *Stub) Issued() []ports.CredentialAttributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.CredentialAttributes(nil), s.issued...)
}
