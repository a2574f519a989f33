package wallet

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// KeypairProvider signs with a local private key. Used by the chat binary
// and tests in place of a browser extension.
type KeypairProvider struct {
	key solana.PrivateKey
}

// NewKeypairProvider wraps key.
func NewKeypairProvider(key solana.PrivateKey) *KeypairProvider {
	return &KeypairProvider{key: key}
}

// LoadKeypair reads a keypair file in the solana-keygen JSON format.
func LoadKeypair(path string) (*KeypairProvider, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypairProvider(key), nil
}

// PublicKey implements ExtensionProvider.
func (p *KeypairProvider) PublicKey() solana.PublicKey {
	return p.key.PublicKey()
}

// SignTransaction implements Signer. Signatures of other signers are kept.
func (p *KeypairProvider) SignTransaction(_ context.Context, raw []byte) ([]byte, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	n := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != n {
		sigs := make([]solana.Signature, n)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	pub := p.PublicKey()
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if !tx.Message.AccountKeys[i].Equals(pub) {
			continue
		}
		sig, err := p.key.Sign(message)
		if err != nil {
			return nil, fmt.Errorf("sign: %w", err)
		}
		tx.Signatures[i] = sig
		return tx.MarshalBinary()
	}
	return nil, fmt.Errorf("%s is not a required signer", pub)
}
