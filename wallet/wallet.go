package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// ethPath is m/44'/60'/0'/0 without the trailing index.
var ethPath = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 60,
	bip32.FirstHardenedChild + 0,
	0,
}

// DeriveKey derives the signing key at m/44'/60'/0'/0/{index}.
func DeriveKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	key, err := bip32.NewMasterKey(bip39.NewSeed(mnemonic, ""))
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	for depth, child := range append(ethPath, index) {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, fmt.Errorf("deriving level %d: %w", depth+1, err)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, fmt.Errorf("converting to ECDSA: %w", err)
	}
	return privateKey, nil
}

// DeriveAddress returns the address of the key at index.
func DeriveAddress(mnemonic string, index uint32) (common.Address, error) {
	key, err := DeriveKey(mnemonic, index)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
