package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

const KeyBits = 2048

const pemBlockPublicKey = "PUBLIC KEY"

// KeyPair is an ephemeral client keypair. It is scoped to a single session
// bootstrap and must not be persisted.
type KeyPair struct {
	private *rsa.PrivateKey
}

type KeyGenerator func() (*KeyPair, error)

func GenerateKeyPair() (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("security: generate rsa key: %w", err)
	}
	return &KeyPair{private: key}, nil
}

func NewKeyPair(key *rsa.PrivateKey) (*KeyPair, error) {
	if key == nil {
		return nil, fmt.Errorf("security: private key is required")
	}
	return &KeyPair{private: key}, nil
}

func (k *KeyPair) PublicKey() *rsa.PublicKey {
	if k == nil || k.private == nil {
		return nil
	}
	return &k.private.PublicKey
}

// PublicKeyPEM encodes the public half as a PKIX "PUBLIC KEY" block, the
// format the installation endpoint expects.
func (k *KeyPair) PublicKeyPEM() (string, error) {
	pub := k.PublicKey()
	if pub == nil {
		return "", fmt.Errorf("security: keypair is empty")
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("security: marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemBlockPublicKey, Bytes: der})), nil
}

// Sign returns the base64 PKCS#1 v1.5 signature of the SHA-256 digest of body.
func Sign(body string, keys *KeyPair) (string, error) {
	if keys == nil || keys.private == nil {
		return "", fmt.Errorf("security: keypair is required for signing")
	}
	digest := sha256.Sum256([]byte(body))
	signature, err := rsa.SignPKCS1v15(rand.Reader, keys.private, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("security: sign body: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func Verify(pub *rsa.PublicKey, body string, signature string) error {
	if pub == nil {
		return fmt.Errorf("security: public key is required for verification")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("security: decode signature: %w", err)
	}
	digest := sha256.Sum256([]byte(body))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], raw); err != nil {
		return fmt.Errorf("security: verify signature: %w", err)
	}
	return nil
}

func ParsePublicKeyPEM(encoded string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(encoded))
	if block == nil || block.Type != pemBlockPublicKey {
		return nil, fmt.Errorf("security: invalid public key pem")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("security: parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("security: public key is not rsa")
	}
	return pub, nil
}
