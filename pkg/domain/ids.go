package domain

import (
	"github.com/google/uuid"

	dErrors "welfare/pkg/domain-errors"
)

// Typed identifiers keep citizen, scheme and match IDs from being swapped at
// call sites. All of them are UUIDs on the wire and in Postgres.
type (
	CitizenID      uuid.UUID
	SchemeID       uuid.UUID
	MatchID        uuid.UUID
	NotificationID uuid.UUID
)

func (id CitizenID) String() string      { return uuid.UUID(id).String() }
func (id SchemeID) String() string       { return uuid.UUID(id).String() }
func (id MatchID) String() string        { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id CitizenID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SchemeID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func NewCitizenID() CitizenID           { return CitizenID(uuid.New()) }
func NewSchemeID() SchemeID             { return SchemeID(uuid.New()) }
func NewMatchID() MatchID               { return MatchID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

func ParseCitizenID(s string) (CitizenID, error) {
	u, err := parseUUID(s, "citizen ID")
	return CitizenID(u), err
}

func ParseSchemeID(s string) (SchemeID, error) {
	u, err := parseUUID(s, "scheme ID")
	return SchemeID(u), err
}

func ParseMatchID(s string) (MatchID, error) {
	u, err := parseUUID(s, "match ID")
	return MatchID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification ID")
	return NotificationID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs at trust boundaries
// (job payloads, CLI arguments).
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
