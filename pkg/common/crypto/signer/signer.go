package signer

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/verisage/oracle/pkg/oracle/types"
)

// LocalSigner implements Signer using an in-process secp256k1 key.
type LocalSigner struct {
	signingKey *ecdsa.PrivateKey
}

// NewLocalSigner creates a signer from an encrypted keystore file.
func NewLocalSigner(keystorePath string, password string) (*LocalSigner, error) {
	keyJSON, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
	}
	return &LocalSigner{signingKey: key.PrivateKey}, nil
}

// NewLocalSignerFromHex creates a signer from a raw hex private key.
func NewLocalSignerFromHex(privateKeyHex string) (*LocalSigner, error) {
	if len(privateKeyHex) >= 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signing private key: %w", err)
	}
	return &LocalSigner{signingKey: key}, nil
}

// SigningAddress returns the address derived from the signing key.
func (s *LocalSigner) SigningAddress() ethcommon.Address {
	return crypto.PubkeyToAddress(s.signingKey.PublicKey)
}

// PublicKeyHex returns the compressed signing public key in hex.
func (s *LocalSigner) PublicKeyHex() string {
	return hex.EncodeToString(crypto.CompressPubkey(&s.signingKey.PublicKey))
}

// Sign signs sha256(message) with the signing key. The signature is
// recoverable (65 bytes, R || S || V).
func (s *LocalSigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	signature, err := crypto.Sign(digest[:], s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return signature, nil
}

// SignResult signs the canonical encoding of a result. The result's
// own Signature/PublicKey fields are excluded from the signed bytes so
// verification is reproducible from the published result alone.
func (s *LocalSigner) SignResult(result *types.ConsensusResult) (string, string, error) {
	canonical, err := CanonicalResultBytes(result)
	if err != nil {
		return "", "", err
	}
	signature, err := s.Sign(canonical)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(signature), s.PublicKeyHex(), nil
}

// CanonicalResultBytes returns the deterministic byte encoding of a
// result that signatures commit to. Field order is fixed by the struct
// definition; llm_responses are pre-sorted by provider name at
// aggregation time.
func CanonicalResultBytes(result *types.ConsensusResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("result is nil")
	}
	unsigned := *result
	unsigned.Signature = ""
	unsigned.PublicKey = ""
	data, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize result: %w", err)
	}
	return data, nil
}

// VerifyResult checks a signed result against its embedded signature
// and public key: recompute the canonical digest, recover the public
// key from the signature and compare the compressed encodings.
func VerifyResult(result *types.ConsensusResult) error {
	if result.Signature == "" || result.PublicKey == "" {
		return fmt.Errorf("result is not signed")
	}
	signature, err := hex.DecodeString(result.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	canonical, err := CanonicalResultBytes(result)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(canonical)
	pubkey, err := crypto.SigToPub(digest[:], signature)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %w", err)
	}
	recovered := hex.EncodeToString(crypto.CompressPubkey(pubkey))
	if recovered != result.PublicKey {
		return fmt.Errorf("invalid signature: recovered key %s does not match %s", recovered, result.PublicKey)
	}
	return nil
}

// VerifySignature verifies that signature over message recovers to the
// given address.
func VerifySignature(address ethcommon.Address, message []byte, signature []byte) bool {
	digest := sha256.Sum256(message)
	pubkey, err := crypto.SigToPub(digest[:], signature)
	if err != nil {
		return false
	}
	return address == crypto.PubkeyToAddress(*pubkey)
}
