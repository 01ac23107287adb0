package signer

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/verisage/oracle/pkg/oracle/types"
)

// Signer produces recoverable signatures over oracle results. Key
// material is supplied externally (keystore file or raw hex key); the
// derived public key is stable across restarts so external verifiers
// can correlate it with a separately published identity.
type Signer interface {
	// Sign signs a message with the signing key.
	Sign(message []byte) ([]byte, error)
	// SignResult canonicalizes and signs a consensus result, returning
	// the hex signature and hex compressed public key.
	SignResult(result *types.ConsensusResult) (signature string, publicKey string, err error)
	// SigningAddress returns the address derived from the signing key.
	SigningAddress() ethcommon.Address
	// PublicKeyHex returns the compressed signing public key in hex.
	PublicKeyHex() string
}
