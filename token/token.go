// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package token

import (
	"time"

	"github.com/google/uuid"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/util"
)

// payload tags keep issuer and holder signatures from being
// interchangeable
const (
	issuedTag   = 0x01
	divisionTag = 0x02
)

// namespace for ids derived from division records
var derivedNamespace = uuid.MustParse("6f9b3c2e-4a1d-5e8f-9b7c-0d2e4f6a8b1c")

// OfflineToken - a signed bearer claim on settled value
type OfflineToken struct {
	Id        string            `json:"id"`
	Amount    uint64            `json:"amount"`
	Issuer    *account.Account  `json:"issuer"`
	IssuedAt  time.Time         `json:"issuedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Signature account.Signature `json:"signature"`
	Divisions []Division        `json:"divisions,omitempty"`
	Origin    *Origin           `json:"origin,omitempty"`
	IsSpent   bool              `json:"isSpent"`
	SpentAt   time.Time         `json:"spentAt,omitempty"`
}

// Origin - ties a sub-claim back to the issued root token
type Origin struct {
	TokenId string     `json:"tokenId"`
	Amount  uint64     `json:"amount"`
	Chain   []Division `json:"chain"`
}

// Division - holder signed record taking part of a token's value
type Division struct {
	ParentId  string            `json:"parentId"`
	Sequence  uint64            `json:"sequence"`
	Amount    uint64            `json:"amount"`
	Timestamp time.Time         `json:"timestamp"`
	Holder    *account.Account  `json:"holder"`
	Signature account.Signature `json:"signature"`
}

// NewId - fresh random token id
func NewId() string {
	return uuid.New().String()
}

// IssuerPayload - canonical bytes signed by the issuer
func IssuerPayload(id string, amount uint64, issuer *account.Account, issuedAt time.Time, expiresAt time.Time) []byte {
	buffer := []byte{issuedTag}
	buffer = util.AppendString(buffer, id)
	buffer = util.AppendUint64(buffer, amount)
	buffer = util.AppendBytes(buffer, issuer.Bytes())
	buffer = util.AppendTime(buffer, issuedAt)
	buffer = util.AppendTime(buffer, expiresAt)
	return buffer
}

// SigningPayload - the issuer payload of this token, a sub-claim
// carries the payload of its root
func (t *OfflineToken) SigningPayload() []byte {
	return IssuerPayload(t.RootId(), t.RootAmount(), t.Issuer, t.IssuedAt, t.ExpiresAt)
}

// RootId - id of the token the issuer signed
func (t *OfflineToken) RootId() string {
	if nil != t.Origin {
		return t.Origin.TokenId
	}
	return t.Id
}

// RootAmount - amount of the token the issuer signed
func (t *OfflineToken) RootAmount() uint64 {
	if nil != t.Origin {
		return t.Origin.Amount
	}
	return t.Amount
}

// Claim - one node on the path from an issued root to a token
type Claim struct {
	Id     string
	Amount uint64
}

// Lineage - every claim from the issued root down to t itself
//
// a root token has a lineage of one
func (t *OfflineToken) Lineage() []Claim {
	claims := []Claim{{Id: t.RootId(), Amount: t.RootAmount()}}
	if nil == t.Origin {
		return claims
	}
	for i := range t.Origin.Chain {
		d := &t.Origin.Chain[i]
		claims = append(claims, Claim{Id: d.DerivedId(), Amount: d.Amount})
	}
	return claims
}

// IsDivided - true once any value has been taken from the token
func (t *OfflineToken) IsDivided() bool {
	return 0 != len(t.Divisions)
}

// DividedAmount - running total of all divisions
func (t *OfflineToken) DividedAmount() uint64 {
	total := uint64(0)
	for _, d := range t.Divisions {
		total += d.Amount
	}
	return total
}

// IsExpired - expiry is inclusive of the expiry instant
func (t *OfflineToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// MarkSpent - flip the spent flag
func (t *OfflineToken) MarkSpent(now time.Time) {
	t.IsSpent = true
	t.SpentAt = now.UTC()
}

// Clone - deep copy so callers can mutate without sharing
func (t *OfflineToken) Clone() *OfflineToken {
	if nil == t {
		return nil
	}
	c := *t
	c.Signature = append(account.Signature(nil), t.Signature...)
	c.Divisions = cloneDivisions(t.Divisions)
	if nil != t.Origin {
		c.Origin = &Origin{
			TokenId: t.Origin.TokenId,
			Amount:  t.Origin.Amount,
			Chain:   cloneDivisions(t.Origin.Chain),
		}
	}
	return &c
}

func cloneDivisions(divisions []Division) []Division {
	if nil == divisions {
		return nil
	}
	c := make([]Division, len(divisions))
	for i, d := range divisions {
		c[i] = d
		c[i].Signature = append(account.Signature(nil), d.Signature...)
	}
	return c
}

// Payload - canonical bytes signed by the holder
func (d *Division) Payload() []byte {
	buffer := []byte{divisionTag}
	buffer = util.AppendString(buffer, d.ParentId)
	buffer = util.AppendUint64(buffer, d.Sequence)
	buffer = util.AppendUint64(buffer, d.Amount)
	buffer = util.AppendTime(buffer, d.Timestamp)
	return buffer
}

// DerivedId - id of the sub-claim created by this record
func (d *Division) DerivedId() string {
	record := d.Payload()
	if nil != d.Holder {
		record = util.AppendBytes(record, d.Holder.Bytes())
	}
	return uuid.NewSHA1(derivedNamespace, record).String()
}

// TotalAmount - sum of token amounts
func TotalAmount(tokens []*OfflineToken) uint64 {
	total := uint64(0)
	for _, t := range tokens {
		total += t.Amount
	}
	return total
}

// Ids - the ids of a token list in order
func Ids(tokens []*OfflineToken) []string {
	ids := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = t.Id
	}
	return ids
}
