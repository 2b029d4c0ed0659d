package services

import (
	"errors"
	"strconv"
	"strings"
)

// SessionIdentity is the caller-generated idempotency key scoping one logical
// authorization attempt: {operatorID}_{unixTimestamp}_{>=16 hex chars}.
type SessionIdentity struct {
	OperatorID string
	IssuedAt   int64
	Nonce      string
}

const minNonceLength = 16

var ErrMalformedIdentity = errors.New("malformed session request identity")

// ParseSessionIdentity splits from the right so the operator id segment may
// itself contain no reserved characters beyond what a uuid uses.
func ParseSessionIdentity(raw string) (*SessionIdentity, error) {
	nonceIdx := strings.LastIndex(raw, "_")
	if nonceIdx <= 0 || nonceIdx == len(raw)-1 {
		return nil, ErrMalformedIdentity
	}
	tsIdx := strings.LastIndex(raw[:nonceIdx], "_")
	if tsIdx <= 0 {
		return nil, ErrMalformedIdentity
	}

	operatorID := raw[:tsIdx]
	tsSegment := raw[tsIdx+1 : nonceIdx]
	nonce := raw[nonceIdx+1:]

	issuedAt, err := strconv.ParseInt(tsSegment, 10, 64)
	if err != nil || issuedAt <= 0 {
		return nil, ErrMalformedIdentity
	}

	if len(nonce) < minNonceLength || !isHex(nonce) {
		return nil, ErrMalformedIdentity
	}

	return &SessionIdentity{
		OperatorID: operatorID,
		IssuedAt:   issuedAt,
		Nonce:      nonce,
	}, nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
