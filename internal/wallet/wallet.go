package wallet

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Wallet wraps the signing key a caller supplies for a single trade.
// The key is never persisted or logged.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.Mutex
	ataCache map[string]solana.PublicKey
}

// NewWallet creates a wallet from a base58-encoded private key.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		ataCache:   make(map[string]solana.PublicKey),
	}, nil
}

// FromPrivateKey wraps an already-decoded key.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{
		PrivateKey: key,
		PublicKey:  key.PublicKey(),
		ataCache:   make(map[string]solana.PublicKey),
	}
}

// SignTransaction signs with the owner key plus any ephemeral keypairs the
// instruction set requires.
func (w *Wallet) SignTransaction(tx *solana.Transaction, ephemeral ...solana.PrivateKey) error {
	signers := make(map[solana.PublicKey]solana.PrivateKey, 1+len(ephemeral))
	signers[w.PublicKey] = w.PrivateKey
	for _, key := range ephemeral {
		signers[key.PublicKey()] = key
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if pk, ok := signers[key]; ok {
			return &pk
		}
		return nil
	})
	return err
}

// GetATA returns the associated token account address for the given mint,
// memoizing the derivation.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	mintStr := mint.String()

	w.mu.Lock()
	ata, ok := w.ataCache[mintStr]
	w.mu.Unlock()
	if ok {
		return ata, nil
	}

	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}

	w.mu.Lock()
	w.ataCache[mintStr] = ata
	w.mu.Unlock()
	return ata, nil
}

// String returns the wallet's public key; the private key never appears in
// logs or errors.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
