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

package protocol

import "fmt"

// TxType identifies a transaction type within its type group.
type TxType uint16

// TxTypeGroup namespaces transaction types so plugins cannot collide with core types.
type TxTypeGroup uint32

// CoreTypeGroup holds the built-in transaction types.
const CoreTypeGroup TxTypeGroup = 1

// Core transaction types.
const (
	TransferTx             TxType = 0
	SecondSignatureTx      TxType = 1
	DelegateRegistrationTx TxType = 2
	VoteTx                 TxType = 3
	MultiSignatureTx       TxType = 4
	IpfsTx                 TxType = 5
	MultiPaymentTx         TxType = 6
	DelegateResignationTx  TxType = 7
)

var coreTxTypeNames = map[TxType]string{
	TransferTx:             "transfer",
	SecondSignatureTx:      "secondSignature",
	DelegateRegistrationTx: "delegateRegistration",
	VoteTx:                 "vote",
	MultiSignatureTx:       "multiSignature",
	IpfsTx:                 "ipfs",
	MultiPaymentTx:         "multiPayment",
	DelegateResignationTx:  "delegateResignation",
}

func (t TxType) String() string {
	if name, ok := coreTxTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint16(t))
}
