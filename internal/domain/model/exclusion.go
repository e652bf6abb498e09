package model

import (
	"strings"
	"time"

	"captive-portal/internal/domain"
)

type IdentifierType string

const (
	IdentifierPhone IdentifierType = "PHONE"
	IdentifierMAC   IdentifierType = "MAC"
)

// Exclusion is a standing administrative override for one phone number or MAC address.
type Exclusion struct {
	ID                    int64
	Type                  IdentifierType
	Value                 string
	Reason                string
	ExcludeFromPayment    bool
	ExcludeFromConnection bool
	CreatedAt             time.Time
}

// NewExclusion validates and normalises an exclusion. MAC values are upper-cased;
// phone values are reduced to their canonical +digits form.
func NewExclusion(typ IdentifierType, value, reason string, fromPayment, fromConnection bool) (*Exclusion, error) {
	typ = IdentifierType(strings.ToUpper(strings.TrimSpace(string(typ))))
	value = strings.TrimSpace(value)
	if value == "" || len(value) > 50 || len(reason) > 200 {
		return nil, domain.ErrInvalidArgument
	}
	switch typ {
	case IdentifierPhone:
		if value = NormalizePhone(value); value == "" {
			return nil, domain.ErrInvalidArgument
		}
	case IdentifierMAC:
		value = NormalizeMAC(value)
	default:
		return nil, domain.ErrInvalidArgument
	}
	if len(value) > 50 {
		return nil, domain.ErrInvalidArgument
	}
	return &Exclusion{
		Type:                  typ,
		Value:                 value,
		Reason:                reason,
		ExcludeFromPayment:    fromPayment,
		ExcludeFromConnection: fromConnection,
		CreatedAt:             time.Now(),
	}, nil
}

// NormalizeMAC upper-cases a MAC and converts '-' separators to ':'.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(mac), "-", ":"))
}

// NormalizePhone drops spaces and the separators - . ( ) and prefixes a bare
// digit string with '+', so "256 77-000" and "+25677000" compare equal.
// Values containing anything else are returned trimmed but otherwise unchanged.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	b.Grow(len(phone) + 1)
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return phone
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}
