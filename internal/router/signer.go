package router

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer authenticates requests to a relay that checks request signatures.
type Signer struct {
	privKey *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(hexKey string) (*Signer, error) {
	clean := strings.TrimSpace(hexKey)
	if clean == "" {
		return nil, errors.New("private key is required")
	}
	clean = strings.TrimPrefix(clean, "0x")
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, err
	}
	return &Signer{privKey: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Sign signs a digest produced by Digest and returns the 65 byte signature hex encoded.
func (s *Signer) Sign(digest string) (string, error) {
	hash, err := hexutil.Decode(digest)
	if err != nil {
		return "", err
	}
	if len(hash) != 32 {
		return "", errors.New("digest must be 32 bytes")
	}
	sig, err := crypto.Sign(hash, s.privKey)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest, sig string) (common.Address, error) {
	hash, err := hexutil.Decode(digest)
	if err != nil {
		return common.Address{}, err
	}
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
