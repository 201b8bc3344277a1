package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Taken from: https://github.com/solana-labs/solana/blob/14339dec0a960e8161d1165b6a8e5cfb73e78f23/sdk/src/transaction.rs#L523
const rustGenerated = "AUc7Cbu+gZalFSGeSFdukHhP7oSGaSdmdNEd5ZokaSysdoMWfIOzjrAbdaBZZuDMAfyNAogAJdrhgVya+jthsgoBAAEDnON0wdcmjhYIDuXvd10F2qEjAyEAJGSe/CGhYbk+WWMBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

// The above example does not have the correct public key encoded in the keypair.
// This is the above example with the correctly generated keypair.
const rustGeneratedAdjusted = "ATMfBMZ8phHEheLph8K9TJhRKhnE4qNZvWiXdUdJRmlTCRsQjWmW2CkQJeRHBCcsqFm2gynjL40M9mTe0Dxp4QIBAAEDfEya6wnC7f3Cv53qnOEywwIJ928rIdqAlfXYI1adXroBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

func TestTransaction_CrossImpl(t *testing.T) {
	keypair := ed25519.PrivateKey{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75, 156, 227, 116, 193, 215, 38, 142, 22, 8,
		14, 229, 239, 119, 93, 5, 218, 161, 35, 3, 33, 0, 36, 100, 158, 252, 33, 161, 97, 185,
		62, 89, 99}
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		keypair.Public().(ed25519.PublicKey),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(keypair.Public().(ed25519.PublicKey), true),
			NewAccountMeta(to, false),
		),
	)
	require.NoError(t, tx.Sign(keypair))

	generated, err := base64.StdEncoding.DecodeString(rustGenerated)
	require.NoError(t, err)

	actual, err := tx.Marshal()
	require.NoError(t, err)
	assert.Equal(t, generated, actual)
}

func TestTransaction_GenerateValidCrossImpl(t *testing.T) {
	keypair := ed25519.NewKeyFromSeed([]byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75})
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		keypair.Public().(ed25519.PublicKey),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(keypair.Public().(ed25519.PublicKey), true),
			NewAccountMeta(to, false),
		),
	)
	require.NoError(t, tx.Sign(keypair))

	encoded, err := tx.ToBase64()
	require.NoError(t, err)
	assert.Equal(t, rustGeneratedAdjusted, encoded)

	valid, err := tx.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTransaction_EmptyAccount(t *testing.T) {
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tx := NewTransaction(
		pub,
		NewInstruction(
			program,
			[]byte{1, 2, 3},
			NewAccountMeta(nil, false),
		),
	)
	assert.NoError(t, tx.Sign(priv))

	b, err := tx.Marshal()
	require.NoError(t, err)

	rtt, err := DeserializeTransaction(b)
	require.NoError(t, err)
	require.Len(t, rtt.Instructions, 1)
	assert.Equal(t, zeroKey, rtt.Instructions[0].Accounts[0].PublicKey)
}

func TestTransaction_MarshalRoundTrip(t *testing.T) {
	expected := "AaZAGNONKTsNypCfvwHGipcWmAX/J03VfLQEHgMDSuHz0ktydqlLb7I4tZnX0Yw8KMTbma28M+yiZPaRolOJGgwBAAgQCR2hNbdxjAiYwC9CSEo2Vso3yq8OXlgoCbepyseaRXoIFE8MTz2ZtOsdNl55fj/zi0S+ArjIP4zJ3Y+MC4tKyQu7s1JPy6Hur6YbU0nF+1XBJYwii/dKtLsNFU/pTo19J7jOgutpJBZbNIhC5ppqC/OYlbzW1KqamkV3p+cslAoyBJxvWrSMXX+X0Ih0+sEzarslIYSV0T/NuLFcjpX8S7ajCdht+3+POhvGcGFzDyc4kIgjN/SAdypJM1Grs+eEtzXhQGM4VMy0p0J2CiOH+k2kwfya5F7fSaYXWOi3CJUGp9UXGSxWjuCKhF9z0peIzwNcMUWyGrNE2AYuqUAAAAan1RcZLFxRIYzJTD1K8X9Y2u4Im6H9ROPb2YoAAAAABt324ddloZPZy+FGzut5rBy0he1fWzeROoz1hX7/AKlDDB9w5G7eh4xhLJIgxblM0E4dxW+ZTABRcCVBt2LcH8b6evO+2606PWXzaqvJdDGxu+TC0vbg5HymAgNFL11hDcYoaKd+VYB6HNWIyaKadms+4q7NwH3gjP6RB91LMWUAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAMGRm/lIRcy/+ytunLDm+e8jOW7xfcSayxDmzpAAAAAjJclj04kifG7PRApFI4NgwtaE5na/xCEBI572Nvp+FmMVCZzhQC2pwD9u6aAm8haUDNRSZG/a7c1U/ltYtc+KAUNAwIHAAQEAAAADgAJA+gDAAAAAAAADgAFAkjoAQAPBwADCgsNCQgBAQwLAAUBBAwMBgwMAwlcCAoCAAAAmhMJCgIAAAAAAUgAAABlmEW1THFmZqyjBehuSli5bMSJBNiQMkZcr19LINSM4KF/whE1IayV174tmVwC9MMlQSmG3j6aJVhIDGMUITUNXRMTAAAAAAA="
	decoded, err := base64.StdEncoding.DecodeString(expected)
	require.NoError(t, err)

	var encoded EncodedTransaction
	require.NoError(t, encoded.Unmarshal(decoded))
	assert.Equal(t, decoded, encoded.Marshal())
	assert.Equal(t, MessageVersionLegacy, encoded.Message.Version())

	txn, err := DeserializeTransaction(decoded)
	require.NoError(t, err)

	body := encoded.Message.Body()
	assert.Equal(t, body.Accounts[0], txn.FeePayer)
	assert.Equal(t, encoded.Signature(), *txn.Signatures[0].Signature)

	numInstructions := len(txn.Instructions)
	if txn.NonceInformation != nil {
		numInstructions++
		assert.Equal(t, body.RecentBlockhash, txn.NonceInformation.Nonce)
	}
	assert.Equal(t, len(body.Instructions), numInstructions)
}

func TestTransaction_PopulateRoundTrip(t *testing.T) {
	keys := generateKeys(t, 4)
	payer := keys[0]
	program := keys[1]

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			[]byte{1, 2, 3},
			NewReadonlyAccountMeta(public(keys[2]), true),
			NewAccountMeta(public(keys[3]), false),
		),
		NewInstruction(
			public(program),
			[]byte{4},
			NewReadonlyAccountMeta(public(keys[3]), false),
		),
	)
	tx.SetBlockhash(Blockhash{1, 2, 3})
	require.NoError(t, tx.Sign(payer, keys[2]))

	b, err := tx.Marshal()
	require.NoError(t, err)

	rtt, err := DeserializeTransaction(b)
	require.NoError(t, err)
	assert.Equal(t, public(payer), rtt.FeePayer)
	assert.Equal(t, Blockhash{1, 2, 3}, rtt.RecentBlockhash)
	assert.Nil(t, rtt.NonceInformation)
	require.Len(t, rtt.Instructions, 2)

	// Privileges are those of the message, not of the individual instruction.
	assert.Equal(t, NewReadonlyAccountMeta(public(keys[2]), true), rtt.Instructions[0].Accounts[0])
	assert.Equal(t, NewAccountMeta(public(keys[3]), false), rtt.Instructions[0].Accounts[1])
	assert.Equal(t, NewAccountMeta(public(keys[3]), false), rtt.Instructions[1].Accounts[0])

	valid, err := rtt.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, valid)

	actual, err := rtt.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, actual)

	b64, err := tx.ToBase64()
	require.NoError(t, err)
	fromBase64, err := DeserializeTransactionBase64(b64)
	require.NoError(t, err)
	assert.Equal(t, rtt, fromBase64)

	_, err = DeserializeTransactionBase64("not base64!")
	assert.Error(t, err)
}

func TestTransaction_PartiallySigned(t *testing.T) {
	keys := generateKeys(t, 3)
	payer := keys[0]

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(keys[1]),
			nil,
			NewAccountMeta(public(keys[2]), true),
		),
	)
	require.NoError(t, tx.Sign(payer))
	require.Len(t, tx.Signatures, 2)
	assert.NotNil(t, tx.Signatures[0].Signature)
	assert.Nil(t, tx.Signatures[1].Signature)

	valid, err := tx.VerifySignatures()
	require.NoError(t, err)
	assert.False(t, valid)

	b, err := tx.Marshal()
	require.NoError(t, err)

	rtt, err := DeserializeTransaction(b)
	require.NoError(t, err)
	require.Len(t, rtt.Signatures, 2)
	assert.Equal(t, public(keys[2]), rtt.Signatures[1].PublicKey)
	assert.Nil(t, rtt.Signatures[1].Signature)

	require.NoError(t, rtt.Sign(keys[2]))
	valid, err = rtt.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, valid)

	// Signing for an account that isn't a signer fails.
	assert.Error(t, rtt.Sign(keys[1]))
}

func TestTransaction_SetBlockhashClearsSignatures(t *testing.T) {
	keys := generateKeys(t, 2)

	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), nil))
	tx.SetBlockhash(Blockhash{1})
	require.NoError(t, tx.Sign(keys[0]))
	require.NotNil(t, tx.Signatures[0].Signature)

	tx.SetBlockhash(Blockhash{1})
	assert.NotNil(t, tx.Signatures[0].Signature)

	tx.SetBlockhash(Blockhash{2})
	assert.Nil(t, tx.Signatures[0].Signature)
	assert.Nil(t, tx.Signature())
}

func TestTransaction_AddClearsSignatures(t *testing.T) {
	keys := generateKeys(t, 3)

	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}))
	tx.SetBlockhash(Blockhash{1})
	require.NoError(t, tx.Sign(keys[0]))

	tx.Add()
	ok, err := tx.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, ok)

	tx.Add(NewInstruction(public(keys[2]), []byte{2}))
	assert.Nil(t, tx.Signature())

	ok, err = tx.VerifySignatures()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.Sign(keys[0]))
	ok, err = tx.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := tx.Marshal()
	require.NoError(t, err)
	decoded, err := DeserializeTransaction(raw)
	require.NoError(t, err)
	ok, err = decoded.VerifySignatures()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, decoded.Instructions, 2)
}

func TestTransaction_NonceInformation(t *testing.T) {
	keys := generateKeys(t, 3)
	payer := keys[0]
	nonce := public(keys[1])
	program := public(keys[2])

	advance := NewInstruction(
		zeroKey,
		[]byte{4, 0, 0, 0},
		NewAccountMeta(nonce, false),
		NewReadonlyAccountMeta(RecentBlockhashesSysVar, false),
		NewReadonlyAccountMeta(public(payer), true),
	)

	tx := NewTransaction(public(payer), NewInstruction(program, []byte{1}))
	tx.SetBlockhash(Blockhash{9})
	tx.SetNonceInformation(Blockhash{7}, advance)
	assert.True(t, tx.HasDurableNonce())
	require.NoError(t, tx.Sign(payer))

	m, err := tx.CompileMessage()
	require.NoError(t, err)
	assert.Equal(t, Blockhash{7}, m.RecentBlockhash)
	require.Len(t, m.Instructions, 2)
	assert.Equal(t, []byte{4, 0, 0, 0}, m.Instructions[0].Data)

	b, err := tx.Marshal()
	require.NoError(t, err)

	rtt, err := DeserializeTransaction(b)
	require.NoError(t, err)
	require.NotNil(t, rtt.NonceInformation)
	assert.Equal(t, Blockhash{7}, rtt.NonceInformation.Nonce)
	assert.Equal(t, zeroKey, rtt.NonceInformation.Instruction.Program)
	assert.Equal(t, advance.Data, rtt.NonceInformation.Instruction.Data)
	require.Len(t, rtt.Instructions, 1)
	assert.Equal(t, program, rtt.Instructions[0].Program)

	// Re-encoding keeps the advance instruction first, exactly once.
	actual, err := rtt.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, actual)

	rtt.Instructions = append([]Instruction{rtt.NonceInformation.Instruction}, rtt.Instructions...)
	actual, err = rtt.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, actual)
}

func TestTransaction_NonceNotFirstInstruction(t *testing.T) {
	keys := generateKeys(t, 3)
	payer := keys[0]

	tx := NewTransaction(
		public(payer),
		NewInstruction(public(keys[2]), []byte{1}),
		NewInstruction(
			zeroKey,
			[]byte{4, 0, 0, 0},
			NewAccountMeta(public(keys[1]), false),
			NewReadonlyAccountMeta(RecentBlockhashesSysVar, false),
			NewReadonlyAccountMeta(public(payer), true),
		),
	)
	require.NoError(t, tx.Sign(payer))

	b, err := tx.Marshal()
	require.NoError(t, err)

	rtt, err := DeserializeTransaction(b)
	require.NoError(t, err)
	assert.Nil(t, rtt.NonceInformation)
	assert.Len(t, rtt.Instructions, 2)
}

func TestTransaction_MissingBlockhash(t *testing.T) {
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tx := NewTransaction(
		pub,
		NewInstruction(
			program,
			[]byte{1, 2, 3},
			NewAccountMeta(pub, false),
		),
	)
	assert.NoError(t, tx.Sign(priv))

	b, err := tx.Marshal()
	require.NoError(t, err)

	rtt, err := DeserializeTransaction(b)
	require.NoError(t, err)
	assert.Equal(t, Blockhash{}, rtt.RecentBlockhash)
}

func TestTransaction_NoFeePayer(t *testing.T) {
	keys := generateKeys(t, 1)

	tx := NewTransaction(nil, NewInstruction(public(keys[0]), nil))
	_, err := tx.Marshal()
	assert.Equal(t, ErrNoFeePayer, err)

	tx.Signatures = []SignaturePubKeyPair{{PublicKey: public(keys[0])}}
	m, err := tx.CompileMessage()
	require.NoError(t, err)
	assert.Equal(t, public(keys[0]), m.Accounts[0])
}

func TestTransaction_InvalidAccounts(t *testing.T) {
	keys := generateKeys(t, 2)
	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(
			public(keys[1]),
			nil,
			NewAccountMeta(public(keys[0]), true),
		),
	)
	require.NoError(t, tx.Sign(keys[0]))

	m, err := tx.CompileMessage()
	require.NoError(t, err)
	m.Instructions[0].ProgramIndex = 2

	encoded := tx.encode(m)
	_, err = DeserializeTransaction(encoded.Marshal())
	assert.ErrorIs(t, err, ErrUnknownLookupIndex)

	m, err = tx.CompileMessage()
	require.NoError(t, err)
	m.Instructions[0].Accounts = []byte{2}

	encoded = tx.encode(m)
	_, err = DeserializeTransaction(encoded.Marshal())
	assert.ErrorIs(t, err, ErrUnknownLookupIndex)
}

func TestTransaction_SingleInstruction(t *testing.T) {
	keys := generateKeys(t, 2)
	payer := keys[0]
	program := keys[1]

	keys = generateKeys(t, 4)
	data := []byte{1, 2, 3}

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
		),
	)

	// Intentionally sign out of order to ensure ordering is fixed.
	assert.NoError(t, tx.Sign(keys[0], keys[3], payer))

	m, err := tx.CompileMessage()
	require.NoError(t, err)

	require.Len(t, tx.Signatures, 3)
	require.Len(t, m.Accounts, 6)
	assert.EqualValues(t, 3, m.Header.NumRequiredSignatures)
	assert.EqualValues(t, 1, m.Header.NumReadonlySigned)
	assert.EqualValues(t, 2, m.Header.NumReadonlyUnsigned)

	message := m.Marshal()

	assert.True(t, ed25519.Verify(public(payer), message, tx.Signatures[0].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[3]), message, tx.Signatures[1].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[0]), message, tx.Signatures[2].Signature[:]))

	assert.Equal(t, MessageVersionLegacy, m.Version())

	assert.Equal(t, public(payer), m.Accounts[0])
	assert.Equal(t, public(keys[3]), m.Accounts[1])
	assert.Equal(t, public(keys[0]), m.Accounts[2])
	assert.Equal(t, public(keys[2]), m.Accounts[3])
	assert.Equal(t, public(keys[1]), m.Accounts[4])
	assert.Equal(t, public(program), m.Accounts[5])

	assert.Equal(t, byte(5), m.Instructions[0].ProgramIndex)
	assert.Equal(t, data, m.Instructions[0].Data)
	assert.Equal(t, []byte{2, 4, 3, 1}, m.Instructions[0].Accounts)
}

func TestTransaction_DuplicateKeys(t *testing.T) {
	keys := generateKeys(t, 2)
	payer := keys[0]
	program := keys[1]

	keys = generateKeys(t, 4)
	data := []byte{1, 2, 3}

	// Key[0]: ReadOnlySigner -> WritableSigner
	// Key[1]: ReadOnly       -> ReadOnlySigner
	// Key[2]: Writable       -> Writable       (ReadOnly,noop)
	// Key[3]: WritableSigner -> WritableSigner (ReadOnly,noop)

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
			// Upgrade keys [0] and [1]
			NewAccountMeta(public(keys[0]), false),
			NewReadonlyAccountMeta(public(keys[1]), true),
			// 'Downgrade' keys [2] and [3] (noop)
			NewReadonlyAccountMeta(public(keys[2]), false),
			NewReadonlyAccountMeta(public(keys[3]), false),
		),
	)

	// Intentionally sign out of order to ensure ordering is fixed.
	assert.NoError(t, tx.Sign(
		keys[0],
		keys[1],
		keys[3],
		payer,
	))

	m, err := tx.CompileMessage()
	require.NoError(t, err)

	require.Len(t, tx.Signatures, 4)
	require.Len(t, m.Accounts, 6)
	assert.EqualValues(t, 4, m.Header.NumRequiredSignatures)
	assert.EqualValues(t, 1, m.Header.NumReadonlySigned)
	assert.EqualValues(t, 1, m.Header.NumReadonlyUnsigned)

	message := m.Marshal()

	assert.True(t, ed25519.Verify(public(payer), message, tx.Signatures[0].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[0]), message, tx.Signatures[1].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[3]), message, tx.Signatures[2].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[1]), message, tx.Signatures[3].Signature[:]))

	assert.Equal(t, public(payer), m.Accounts[0])
	assert.Equal(t, public(keys[0]), m.Accounts[1])
	assert.Equal(t, public(keys[3]), m.Accounts[2])
	assert.Equal(t, public(keys[1]), m.Accounts[3])
	assert.Equal(t, public(keys[2]), m.Accounts[4])
	assert.Equal(t, public(program), m.Accounts[5])

	assert.Equal(t, byte(5), m.Instructions[0].ProgramIndex)
	assert.Equal(t, data, m.Instructions[0].Data)
	assert.Equal(t, []byte{1, 3, 4, 2, 1, 3, 4, 2}, m.Instructions[0].Accounts)
}

func TestTransaction_MultiInstruction(t *testing.T) {
	keys := generateKeys(t, 3)
	payer := keys[0]
	program := keys[1]
	program2 := keys[2]

	keys = generateKeys(t, 6)

	data := []byte{1, 2, 3}
	data2 := []byte{3, 4, 5}

	// Key[0]: ReadOnlySigner -> WritableSigner
	// Key[1]: ReadOnly       -> WritableSigner
	// Key[2]: Writable       -> Writable       (ReadOnly,noop)
	// Key[3]: WritableSigner -> WritableSigner (ReadOnly,noop)
	// Key[4]: n/a            -> WritableSigner
	// Key[5]: n/a            -> ReadOnly

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program2),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
		),
		NewInstruction(
			public(program),
			data2,
			// Ensure that keys don't get downgraded in permissions
			NewReadonlyAccountMeta(public(keys[3]), false),
			NewReadonlyAccountMeta(public(keys[2]), false),
			// Ensure we can upgrade upgrading works
			NewAccountMeta(public(keys[0]), false),
			NewAccountMeta(public(keys[1]), true),
			// Ensure accounts get added
			NewAccountMeta(public(keys[4]), true),
			NewReadonlyAccountMeta(public(keys[5]), false),
		),
	)

	assert.NoError(t, tx.Sign(
		payer,
		keys[0],
		keys[1],
		keys[3],
		keys[4],
	))

	m, err := tx.CompileMessage()
	require.NoError(t, err)

	require.Len(t, tx.Signatures, 5)
	require.Len(t, m.Accounts, 9)

	assert.EqualValues(t, 5, m.Header.NumRequiredSignatures)
	assert.EqualValues(t, 0, m.Header.NumReadonlySigned)
	assert.EqualValues(t, 3, m.Header.NumReadonlyUnsigned)

	message := m.Marshal()

	assert.True(t, ed25519.Verify(public(payer), message, tx.Signatures[0].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[0]), message, tx.Signatures[1].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[1]), message, tx.Signatures[2].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[3]), message, tx.Signatures[3].Signature[:]))
	assert.True(t, ed25519.Verify(public(keys[4]), message, tx.Signatures[4].Signature[:]))

	// Accounts of equal privilege keep the order they were first referenced in.
	assert.Equal(t, public(payer), m.Accounts[0])
	assert.Equal(t, public(keys[0]), m.Accounts[1])
	assert.Equal(t, public(keys[1]), m.Accounts[2])
	assert.Equal(t, public(keys[3]), m.Accounts[3])
	assert.Equal(t, public(keys[4]), m.Accounts[4])
	assert.Equal(t, public(keys[2]), m.Accounts[5])
	assert.Equal(t, public(program2), m.Accounts[6])
	assert.Equal(t, public(keys[5]), m.Accounts[7])
	assert.Equal(t, public(program), m.Accounts[8])

	assert.Equal(t, byte(6), m.Instructions[0].ProgramIndex)
	assert.Equal(t, data, m.Instructions[0].Data)
	assert.Equal(t, []byte{1, 2, 5, 3}, m.Instructions[0].Accounts)

	assert.Equal(t, byte(8), m.Instructions[1].ProgramIndex)
	assert.Equal(t, data2, m.Instructions[1].Data)
	assert.Equal(t, []byte{3, 5, 1, 2, 4, 7}, m.Instructions[1].Accounts)
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func generateKeys(t *testing.T, amount int) []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, amount)

	for i := 0; i < amount; i++ {
		_, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = priv
	}

	return keys
}

func sortedKeys(t *testing.T, amount int) []ed25519.PrivateKey {
	keys := generateKeys(t, amount)
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(public(keys[i]), public(keys[j])) < 0
	})
	return keys
}
