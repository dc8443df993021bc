// Package identity resolves the acting party of a request into an owner key:
// an authenticated account or an anonymous visitor holding a guest session token.
package identity

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindNone Kind = iota
	KindAccount
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindSession:
		return "session"
	default:
		return "none"
	}
}

// OwnerKey is exactly one of an account id or a guest session token.
// The zero value owns nothing.
type OwnerKey struct {
	kind         Kind
	accountID    uint
	sessionToken string
}

func AccountOwner(id uint) OwnerKey {
	if id == 0 {
		return OwnerKey{}
	}
	return OwnerKey{kind: KindAccount, accountID: id}
}

func SessionOwner(token string) OwnerKey {
	token = strings.TrimSpace(token)
	if token == "" {
		return OwnerKey{}
	}
	return OwnerKey{kind: KindSession, sessionToken: token}
}

func (k OwnerKey) Kind() Kind { return k.kind }

func (k OwnerKey) Valid() bool { return k.kind != KindNone }

func (k OwnerKey) AccountID() (uint, bool) {
	return k.accountID, k.kind == KindAccount
}

func (k OwnerKey) SessionToken() (string, bool) {
	return k.sessionToken, k.kind == KindSession
}

func (k OwnerKey) String() string {
	switch k.kind {
	case KindAccount:
		return fmt.Sprintf("account:%d", k.accountID)
	case KindSession:
		return "session:" + k.sessionToken
	default:
		return ""
	}
}
