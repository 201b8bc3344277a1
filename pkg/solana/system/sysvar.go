package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/solana-sdk-go/pkg/solana"
)

// https://explorer.solana.com/address/11111111111111111111111111111111
var SystemAccount ed25519.PublicKey

// RentSysVar points to the system variable "Rent"
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
var RentSysVar ed25519.PublicKey

// RecentBlockhashesSysVar is the sysvar a durable nonce advance references.
var RecentBlockhashesSysVar = solana.RecentBlockhashesSysVar

func init() {
	var err error

	RentSysVar, err = base58.Decode("SysvarRent111111111111111111111111111111111")
	if err != nil {
		panic(err)
	}

	SystemAccount, err = base58.Decode("11111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
}
