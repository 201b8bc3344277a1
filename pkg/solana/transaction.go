package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/solana-sdk-go/pkg/solana/shortvec"
)

// SignaturePubKeyPair is a required signer of a transaction, along with its
// signature if one has been provided.
type SignaturePubKeyPair struct {
	PublicKey ed25519.PublicKey
	Signature *Signature
}

// NonceInformation replaces the recent blockhash of a transaction with the
// value of a durable nonce. Instruction advances the nonce, and is always
// compiled as the first instruction.
type NonceInformation struct {
	Nonce       Blockhash
	Instruction Instruction
}

// Transaction is a legacy transaction expressed as its instructions. The
// message it signs is derived by compiling it.
type Transaction struct {
	FeePayer         ed25519.PublicKey
	Instructions     []Instruction
	RecentBlockhash  Blockhash
	Signatures       []SignaturePubKeyPair
	NonceInformation *NonceInformation
}

func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	return Transaction{
		FeePayer:     payer,
		Instructions: instructions,
	}
}

// Add appends instructions to the transaction. Existing signatures no longer
// cover the message and are discarded.
func (t *Transaction) Add(instructions ...Instruction) {
	if len(instructions) == 0 {
		return
	}
	t.clearSignatures()
	t.Instructions = append(t.Instructions, instructions...)
}

// SetBlockhash sets the recent blockhash. Signatures over a different
// blockhash are discarded.
func (t *Transaction) SetBlockhash(bh Blockhash) {
	if bh != t.RecentBlockhash {
		t.clearSignatures()
	}
	t.RecentBlockhash = bh
}

func (t *Transaction) clearSignatures() {
	for i := range t.Signatures {
		t.Signatures[i].Signature = nil
	}
}

// HasDurableNonce reports whether the transaction uses a durable nonce in
// place of a recent blockhash.
func (t *Transaction) HasDurableNonce() bool {
	return t.NonceInformation != nil
}

// SetNonceInformation makes the transaction use a durable nonce in place of a
// recent blockhash.
func (t *Transaction) SetNonceInformation(nonce Blockhash, advance Instruction) {
	t.NonceInformation = &NonceInformation{
		Nonce:       nonce,
		Instruction: advance,
	}
}

// CompileMessage compiles the transaction into a legacy message.
func (t *Transaction) CompileMessage() (*Message, error) {
	payer, blockhash, instructions, err := t.compileInputs()
	if err != nil {
		return nil, err
	}
	return CompileLegacyMessage(payer, blockhash, instructions...)
}

// MessageBytes returns the bytes signers sign.
func (t *Transaction) MessageBytes() ([]byte, error) {
	m, err := t.CompileMessage()
	if err != nil {
		return nil, err
	}
	return m.Marshal(), nil
}

// Sign signs the transaction with each of the provided keys, which must be
// required signers.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	m, err := t.CompileMessage()
	if err != nil {
		return err
	}
	if len(signers) == 0 {
		t.syncSignatures(m)
		return nil
	}
	return t.sign(m, NewKeyring(signers...), publicKeysOf(signers))
}

// SignWith signs the transaction with signer for each of pubs. If no keys are
// provided, every required signer without a signature is signed for.
func (t *Transaction) SignWith(signer Signer, pubs ...ed25519.PublicKey) error {
	m, err := t.CompileMessage()
	if err != nil {
		return err
	}
	return t.sign(m, signer, pubs)
}

// AddSignature attaches an externally produced signature.
func (t *Transaction) AddSignature(pub ed25519.PublicKey, sig Signature) error {
	m, err := t.CompileMessage()
	if err != nil {
		return err
	}
	return t.addSignature(m, pub, sig)
}

// VerifySignatures reports whether every required signer has provided a
// valid signature.
func (t *Transaction) VerifySignatures() (bool, error) {
	m, err := t.CompileMessage()
	if err != nil {
		return false, err
	}
	return t.verifySignatures(m), nil
}

// Marshal encodes the transaction into its wire format. Missing signatures
// are encoded as zero signatures.
func (t *Transaction) Marshal() ([]byte, error) {
	m, err := t.CompileMessage()
	if err != nil {
		return nil, err
	}
	return t.encode(m).Marshal(), nil
}

// ToBase64 returns the wire format of the transaction as used over RPC.
func (t *Transaction) ToBase64() (string, error) {
	b, err := t.Marshal()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Signature returns the first signature, which identifies the transaction.
func (t *Transaction) Signature() []byte {
	if len(t.Signatures) == 0 || t.Signatures[0].Signature == nil {
		return nil
	}
	return t.Signatures[0].Signature[:]
}

func (t *Transaction) String() string {
	var sb strings.Builder
	writeTransaction(&sb, t)
	return sb.String()
}

// compileInputs returns the fee payer, blockhash and instructions to compile,
// with the nonce advance instruction first when a durable nonce is used.
func (t *Transaction) compileInputs() (ed25519.PublicKey, Blockhash, []Instruction, error) {
	payer := t.FeePayer
	if len(payer) == 0 && len(t.Signatures) > 0 {
		payer = t.Signatures[0].PublicKey
	}
	if len(payer) == 0 {
		return nil, Blockhash{}, nil, ErrNoFeePayer
	}

	blockhash := t.RecentBlockhash
	instructions := t.Instructions

	if t.NonceInformation != nil {
		blockhash = t.NonceInformation.Nonce

		if len(instructions) == 0 || !instructions[0].Equal(t.NonceInformation.Instruction) {
			instructions = append([]Instruction{t.NonceInformation.Instruction}, instructions...)
		}
	}

	return payer, blockhash, instructions, nil
}

// syncSignatures aligns the signature list with the required signers of m,
// keeping any signature already provided for a signer.
func (t *Transaction) syncSignatures(m VersionedMessage) {
	body := m.Body()
	numSigners := int(body.Header.NumRequiredSignatures)

	existing := make(map[string]*Signature, len(t.Signatures))
	for _, pair := range t.Signatures {
		if pair.Signature != nil {
			existing[string(pair.PublicKey)] = pair.Signature
		}
	}

	synced := make([]SignaturePubKeyPair, numSigners)
	for i := 0; i < numSigners; i++ {
		synced[i] = SignaturePubKeyPair{
			PublicKey: body.Accounts[i],
			Signature: existing[string(body.Accounts[i])],
		}
	}
	t.Signatures = synced
}

func (t *Transaction) sign(m VersionedMessage, signer Signer, pubs []ed25519.PublicKey) error {
	t.syncSignatures(m)
	messageBytes := m.Marshal()

	if len(pubs) == 0 {
		for _, pair := range t.Signatures {
			if pair.Signature == nil {
				pubs = append(pubs, pair.PublicKey)
			}
		}
	}

	for _, pub := range pubs {
		sig, err := signer.Sign(messageBytes, pub)
		if err != nil {
			return errors.Wrapf(err, "failed to sign for %s", base58.Encode(pub))
		}
		if err := t.addSignature(m, pub, sig); err != nil {
			return err
		}
	}

	return nil
}

func (t *Transaction) addSignature(m VersionedMessage, pub ed25519.PublicKey, sig Signature) error {
	t.syncSignatures(m)

	index := indexOf(m.Body().Accounts, pub)
	if index < 0 {
		return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
	}
	if index >= len(t.Signatures) {
		return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
	}

	t.Signatures[index].Signature = &sig
	return nil
}

func (t *Transaction) verifySignatures(m VersionedMessage) bool {
	t.syncSignatures(m)
	messageBytes := m.Marshal()

	for _, pair := range t.Signatures {
		if pair.Signature == nil || !ed25519.Verify(pair.PublicKey, messageBytes, pair.Signature[:]) {
			return false
		}
	}
	return true
}

// encode pairs m with the transaction's signatures in signer order.
func (t *Transaction) encode(m VersionedMessage) EncodedTransaction {
	t.syncSignatures(m)

	encoded := EncodedTransaction{
		Signatures: make([]Signature, len(t.Signatures)),
		Message:    m,
	}
	for i, pair := range t.Signatures {
		if pair.Signature != nil {
			encoded.Signatures[i] = *pair.Signature
		}
	}
	return encoded
}

// Populate reconstructs a transaction from a legacy message and its
// signatures. Signatures are paired positionally with the message's signers.
func Populate(m *Message, sigs []Signature) (*Transaction, error) {
	if err := m.Header.validate(len(m.Accounts)); err != nil {
		return nil, err
	}
	if err := validateInstructions(&m.MessageBody, len(m.Accounts)); err != nil {
		return nil, err
	}

	t := &Transaction{}
	if err := t.populate(m, m.Accounts, sigs); err != nil {
		return nil, err
	}
	return t, nil
}

// populate fills the transaction from a message whose full index space is
// accounts.
func (t *Transaction) populate(m VersionedMessage, accounts []ed25519.PublicKey, sigs []Signature) error {
	body := m.Body()

	if len(sigs) > int(body.Header.NumRequiredSignatures) {
		return errors.Wrapf(ErrSignatureCountMismatch, "%d signatures for %d signers", len(sigs), body.Header.NumRequiredSignatures)
	}

	t.RecentBlockhash = body.RecentBlockhash
	if body.Header.NumRequiredSignatures > 0 {
		t.FeePayer = body.Accounts[0]
	}

	signed := make(map[string]struct{})
	for i := range sigs {
		pair := SignaturePubKeyPair{PublicKey: body.Accounts[i]}
		if sigs[i] != (Signature{}) {
			sig := sigs[i]
			pair.Signature = &sig
			signed[string(body.Accounts[i])] = struct{}{}
		}
		t.Signatures = append(t.Signatures, pair)
	}

	for i, c := range body.Instructions {
		instruction := Instruction{
			Program:  accounts[c.ProgramIndex],
			Accounts: make([]AccountMeta, len(c.Accounts)),
			Data:     c.Data,
		}

		var referencesRecentBlockhashes bool
		for j, index := range c.Accounts {
			key := accounts[index]
			_, hasSignature := signed[string(key)]

			instruction.Accounts[j] = AccountMeta{
				PublicKey:  key,
				IsSigner:   m.IsAccountSigner(int(index)) || hasSignature,
				IsWritable: m.IsAccountWritable(int(index)),
			}

			if bytes.Equal(key, RecentBlockhashesSysVar) {
				referencesRecentBlockhashes = true
			}
		}

		// Only the first instruction can advance a durable nonce.
		if i == 0 && referencesRecentBlockhashes {
			t.NonceInformation = &NonceInformation{
				Nonce:       body.RecentBlockhash,
				Instruction: instruction,
			}
			continue
		}

		t.Instructions = append(t.Instructions, instruction)
	}

	return nil
}

// DeserializeTransaction parses a legacy wire transaction.
func DeserializeTransaction(b []byte) (*Transaction, error) {
	var encoded EncodedTransaction
	if err := encoded.Unmarshal(b); err != nil {
		return nil, err
	}

	m, ok := encoded.Message.(*Message)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidVersionPrefix, "expected legacy message, got %s", encoded.Message.Version())
	}

	return Populate(m, encoded.Signatures)
}

// DeserializeTransactionBase64 parses a base64 encoded legacy wire
// transaction.
func DeserializeTransactionBase64(s string) (*Transaction, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 transaction")
	}
	return DeserializeTransaction(b)
}

// EncodedTransaction is a transaction as it appears on the wire: a message
// and the signatures of its signers.
type EncodedTransaction struct {
	Signatures []Signature
	Message    VersionedMessage
}

// Signature returns the first signature, which identifies the transaction.
func (t EncodedTransaction) Signature() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

func (t EncodedTransaction) Marshal() []byte {
	b := bytes.NewBuffer(nil)

	// Signatures
	_, _ = shortvec.EncodeLen(b, len(t.Signatures))
	for _, s := range t.Signatures {
		_, _ = b.Write(s[:])
	}

	// Message
	_, _ = b.Write(t.Message.Marshal())

	return b.Bytes()
}

func (t *EncodedTransaction) Unmarshal(b []byte) error {
	buf := bytes.NewBuffer(b)

	sigLen, err := readLen(buf, "signature length")
	if err != nil {
		return err
	}
	if sigLen*ed25519.SignatureSize > buf.Len() {
		return errors.Wrapf(ErrTruncatedData, "%d signatures declared, %d bytes remain", sigLen, buf.Len())
	}

	sigs := make([]Signature, sigLen)
	for i := 0; i < sigLen; i++ {
		copy(sigs[i][:], buf.Next(ed25519.SignatureSize))
	}

	m, err := UnmarshalMessage(buf.Bytes())
	if err != nil {
		return err
	}
	if len(sigs) != int(m.Body().Header.NumRequiredSignatures) {
		return errors.Wrapf(ErrSignatureCountMismatch, "%d signatures for %d signers", len(sigs), m.Body().Header.NumRequiredSignatures)
	}

	t.Signatures = sigs
	t.Message = m
	return nil
}

func (t EncodedTransaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, base58.Encode(s[:])))
	}
	if t.Message != nil {
		sb.WriteString(t.Message.String())
	}
	return sb.String()
}

func writeTransaction(sb *strings.Builder, t *Transaction) {
	sb.WriteString(fmt.Sprintf("FeePayer: %s\n", base58.Encode(t.FeePayer)))
	sb.WriteString(fmt.Sprintf("RecentBlockhash: %s\n", t.RecentBlockhash))
	sb.WriteString("Signatures:\n")
	for i, pair := range t.Signatures {
		sig := "<none>"
		if pair.Signature != nil {
			sig = pair.Signature.String()
		}
		sb.WriteString(fmt.Sprintf("  %d: %s %s\n", i, base58.Encode(pair.PublicKey), sig))
	}
	if t.NonceInformation != nil {
		sb.WriteString(fmt.Sprintf("Nonce: %s\n", t.NonceInformation.Nonce))
		writeInstruction(sb, "  Advance", t.NonceInformation.Instruction)
	}
	sb.WriteString("Instructions:\n")
	for i, instruction := range t.Instructions {
		writeInstruction(sb, fmt.Sprintf("  %d", i), instruction)
	}
}

func writeInstruction(sb *strings.Builder, label string, instruction Instruction) {
	sb.WriteString(fmt.Sprintf("%s: %s\n", label, base58.Encode(instruction.Program)))
	for _, a := range instruction.Accounts {
		var flags []string
		if a.IsSigner {
			flags = append(flags, "signer")
		}
		if a.IsWritable {
			flags = append(flags, "writable")
		}
		sb.WriteString(fmt.Sprintf("      %s %v\n", base58.Encode(a.PublicKey), flags))
	}
	sb.WriteString(fmt.Sprintf("      Data: %v\n", instruction.Data))
}
