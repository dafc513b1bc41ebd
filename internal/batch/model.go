// Package batch defines the static user batch that drives an onboarding run:
// the user record model, the JSON loader, and the attribute whitelist helper
// used when forwarding attributes to the identity service.
package batch

import (
	"encoding/json"
	"fmt"

	"github.com/auctionledger/onboard/internal/common"
)

// UserRecord is one entry of the input batch. Records are read-only once
// loaded; Balance is a pointer because the source document may omit it.
//
// On the wire the record is flat: userId, org and balance live next to the
// free-form attributes (email etc.), matching the batch document format.
// A type-malformed entry (balance as a string, userId as a number) decodes
// without error and is reported by Validate instead, so a single bad entry
// never aborts the enclosing document decode.
type UserRecord struct {
	UserID     string
	Org        string
	Balance    *float64
	Attributes map[string]string

	parseErr error
}

// PublicUser is a UserRecord stripped of the balance. Tokens embed this form
// so that a client holding the token file never sees another user's balance.
type PublicUser struct {
	UserID     string
	Org        string
	Attributes map[string]string
}

// Validate reports whether the record is well-formed enough to onboard.
func (u *UserRecord) Validate() error {
	if u.parseErr != nil {
		return u.parseErr
	}
	if u.UserID == "" {
		return fmt.Errorf("%w: missing userId", common.ErrInvalidUserRecord)
	}
	if u.Org == "" {
		return fmt.Errorf("%w: missing org", common.ErrInvalidUserRecord)
	}
	return nil
}

// Public returns a balance-free copy of the record. The attribute map is
// copied so later mutation of the source cannot leak into an issued token.
func (u *UserRecord) Public() PublicUser {
	attrs := make(map[string]string, len(u.Attributes))
	for k, v := range u.Attributes {
		attrs[k] = v
	}
	return PublicUser{UserID: u.UserID, Org: u.Org, Attributes: attrs}
}

func (u UserRecord) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(u.Attributes)+3)
	for k, v := range u.Attributes {
		m[k] = v
	}
	m["userId"] = u.UserID
	m["org"] = u.Org
	if u.Balance != nil {
		m["balance"] = *u.Balance
	}
	return json.Marshal(m)
}

// UnmarshalJSON never fails on entry content: type mismatches are captured
// on the record and surfaced by Validate. Only the fields that decoded
// cleanly are populated, so the userId still identifies the entry in logs
// when, say, the balance is malformed.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	out := UserRecord{Attributes: map[string]string{}}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		out.parseErr = fmt.Errorf("%w: entry is not a JSON object", common.ErrInvalidUserRecord)
		*u = out
		return nil
	}

	for k, v := range m {
		switch k {
		case "userId":
			s, ok := v.(string)
			if !ok {
				out.fail(fmt.Errorf("%w: userId is not a string", common.ErrInvalidUserRecord))
				continue
			}
			out.UserID = s
		case "org":
			s, ok := v.(string)
			if !ok {
				out.fail(fmt.Errorf("%w: org is not a string", common.ErrInvalidUserRecord))
				continue
			}
			out.Org = s
		case "balance":
			n, ok := v.(float64)
			if !ok {
				out.fail(fmt.Errorf("%w: balance is not numeric", common.ErrInvalidUserRecord))
				continue
			}
			out.Balance = &n
		default:
			out.Attributes[k] = fmt.Sprint(v)
		}
	}

	*u = out
	return nil
}

func (u *UserRecord) fail(err error) {
	if u.parseErr == nil {
		u.parseErr = err
	}
}

func (u PublicUser) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(u.Attributes)+2)
	for k, v := range u.Attributes {
		m[k] = v
	}
	m["userId"] = u.UserID
	m["org"] = u.Org
	return json.Marshal(m)
}

// WhitelistAttributes extracts the named attributes from a record for the
// identity service. "userId" and "org" resolve to the record fields, any
// other name resolves to the free-form attribute map. Missing names are
// silently dropped.
func WhitelistAttributes(u *UserRecord, names []string) map[string]string {
	attrs := make(map[string]string, len(names))
	for _, name := range names {
		switch name {
		case "userId":
			attrs[name] = u.UserID
		case "org":
			attrs[name] = u.Org
		default:
			if v, ok := u.Attributes[name]; ok {
				attrs[name] = v
			}
		}
	}
	return attrs
}
