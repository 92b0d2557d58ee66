// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-dpos
//
// go-dpos is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-dpos is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-dpos.  If not, see <https://www.gnu.org/licenses/>.

package transactions

import (
	"github.com/algorand/go-dpos/crypto"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/protocol"
)

// Version2 is the first transaction version that carries a sequential nonce.
const Version2 = 2

// MultiPaymentItem is one leg of a multi-payment.
type MultiPaymentItem struct {
	Amount      basics.BigNum `codec:"amt" json:"amount"`
	RecipientID string        `codec:"rcv" json:"recipientId"`
}

// DelegateAsset carries the username claimed by a delegate registration.
type DelegateAsset struct {
	Username string `codec:"u" json:"username"`
}

// MultiSignatureAsset describes the keys and threshold of a multi-signature wallet.
type MultiSignatureAsset struct {
	Min        uint8    `codec:"min" json:"min"`
	PublicKeys []string `codec:"pks" json:"publicKeys"`
}

// Asset holds the type-specific payload of a transaction. Only the part matching
// the transaction type is set.
type Asset struct {
	// Votes are delegate public keys prefixed with "+" (vote) or "-" (unvote).
	Votes          []string             `codec:"votes,omitempty" json:"votes,omitempty"`
	Payments       []MultiPaymentItem   `codec:"pay,omitempty" json:"payments,omitempty"`
	Delegate       *DelegateAsset       `codec:"dlg,omitempty" json:"delegate,omitempty"`
	MultiSignature *MultiSignatureAsset `codec:"msig,omitempty" json:"multiSignature,omitempty"`
	IpfsHash       string               `codec:"ipfs,omitempty" json:"ipfs,omitempty"`
}

// Transaction is a signed transaction as it appears in a block.
//
// Amounts are arbitrary precision; the struct does not use codec omitempty so
// that zero amounts survive a round trip unchanged.
type Transaction struct {
	ID              string               `codec:"id" json:"id"`
	Version         uint8                `codec:"v" json:"version"`
	Type            protocol.TxType      `codec:"type" json:"type"`
	TypeGroup       protocol.TxTypeGroup `codec:"tg" json:"typeGroup"`
	SenderPublicKey string               `codec:"snd" json:"senderPublicKey"`
	RecipientID     string               `codec:"rcv" json:"recipientId,omitempty"`
	Nonce           basics.BigNum        `codec:"nonce" json:"nonce"`
	Amount          basics.BigNum        `codec:"amt" json:"amount"`
	Fee             basics.BigNum        `codec:"fee" json:"fee"`
	Asset           *Asset               `codec:"asset" json:"asset,omitempty"`
	Signature       string               `codec:"sig" json:"signature,omitempty"`
	Signatures      []string             `codec:"sigs" json:"signatures,omitempty"`
}

// TypeGroupOrDefault returns the type group, treating an unset group as the core group.
func (tx *Transaction) TypeGroupOrDefault() protocol.TxTypeGroup {
	if tx.TypeGroup == 0 {
		return protocol.CoreTypeGroup
	}
	return tx.TypeGroup
}

// VersionOrDefault returns the version, treating an unset version as 1.
func (tx *Transaction) VersionOrDefault() uint8 {
	if tx.Version == 0 {
		return 1
	}
	return tx.Version
}

// HasNonce reports whether the transaction takes part in sequential nonce ordering.
func (tx *Transaction) HasNonce() bool {
	return tx.VersionOrDefault() >= Version2
}

// IsCore reports whether tx belongs to the built-in type group with type t.
func (tx *Transaction) IsCore(t protocol.TxType) bool {
	return tx.TypeGroupOrDefault() == protocol.CoreTypeGroup && tx.Type == t
}

// IsMultiSignatureRegistration reports whether tx registers a multi-signature wallet.
func (tx *Transaction) IsMultiSignatureRegistration() bool {
	return tx.IsCore(protocol.MultiSignatureTx)
}

// HasMultiSignature reports whether tx was signed by a multi-signature wallet
// or registers one.
func (tx *Transaction) HasMultiSignature() bool {
	return len(tx.Signatures) > 0 || tx.IsMultiSignatureRegistration()
}

// Votes returns the vote entries of a vote transaction.
func (tx *Transaction) Votes() []string {
	if tx.Asset == nil {
		return nil
	}
	return tx.Asset.Votes
}

// Payments returns the legs of a multi-payment transaction.
func (tx *Transaction) Payments() []MultiPaymentItem {
	if tx.Asset == nil {
		return nil
	}
	return tx.Asset.Payments
}

// TotalAmount is the amount leaving the sender, excluding the fee. For
// multi-payments it is the sum of all legs.
func (tx *Transaction) TotalAmount() basics.BigNum {
	if tx.IsCore(protocol.MultiPaymentTx) {
		sum := basics.Zero
		for _, p := range tx.Payments() {
			sum = sum.Add(p.Amount)
		}
		return sum
	}
	return tx.Amount
}

// ToBeHashed implements the crypto.Hashable interface. The id commits to
// everything except the id itself.
func (tx Transaction) ToBeHashed() (protocol.HashID, []byte) {
	tx.ID = ""
	return protocol.Transaction, protocol.Encode(&tx)
}

// ComputeID returns the id the transaction's contents commit to.
func (tx Transaction) ComputeID() string {
	return crypto.HashObj(tx).String()
}

// Seal sets the id from the contents.
func (tx *Transaction) Seal() {
	tx.ID = tx.ComputeID()
}
