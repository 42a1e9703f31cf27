package ai

import (
	"context"
	"sync"

	"kycgate/internal/kyc/ports"
)

// Stub is a deterministic verifier for local runs and tests. It returns the
// configured result (or error) and records every request it receives.
type Stub struct {
	mu     sync.Mutex
	result ports.VerifyResult
	err    error
	calls  []ports.VerifyRequest
}

// NewStub returns a stub that approves every submission.
func NewStub() *Stub {
	return &Stub{result: ports.VerifyResult{
		Verified:       true,
		Decision:       DecisionVerified,
		Confidence:     0.95,
		FaceMatchScore: 0.92,
		OCRData:        map[string]any{"source": "stub"},
	}}
}

// SetResult replaces the verdict returned by subsequent calls.
func (s *Stub) SetResult(r ports.VerifyResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
	s.err = nil
}

// SetError makes subsequent calls fail.
func (s *Stub) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Stub) Verify(_ context.Context, req ports.VerifyRequest) (*ports.VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	r := s.result
	return &r, nil
}

func (s *Stub) Health(context.Context) error { return nil }

// Calls returns how many verifications were requested.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
