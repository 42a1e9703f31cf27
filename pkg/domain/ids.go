package domain

import (
	"github.com/google/uuid"

	dErrors "kycgate/pkg/domain-errors"
)

// UserID identifies the account that owns verification records.
type UserID uuid.UUID

// RecordID identifies one verification record (one submission attempt).
type RecordID uuid.UUID

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id RecordID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero UUID.
func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewRecordID returns a fresh random record id.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// ParseUserID parses a user id at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

// ParseRecordID parses a record id at a trust boundary.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record_id")
	return RecordID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}

func (id UserID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id RecordID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *RecordID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
