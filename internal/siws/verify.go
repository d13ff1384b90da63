package siws

import (
	"crypto/ed25519"
	"fmt"
	"slices"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Input is the challenge a client asks its wallet to sign
type Input struct {
	Domain         string   `json:"domain,omitempty"`
	Address        string   `json:"address,omitempty"`
	Statement      string   `json:"statement,omitempty"`
	URI            string   `json:"uri,omitempty"`
	Version        string   `json:"version,omitempty"`
	ChainID        string   `json:"chainId,omitempty"`
	Nonce          string   `json:"nonce,omitempty"`
	IssuedAt       string   `json:"issuedAt,omitempty"`
	ExpirationTime string   `json:"expirationTime,omitempty"`
	NotBefore      string   `json:"notBefore,omitempty"`
	RequestID      string   `json:"requestId,omitempty"`
	Resources      []string `json:"resources,omitempty"`
}

// Message converts the input to the message a wallet would sign
func (in Input) Message() Message {
	return Message{
		Domain:         in.Domain,
		Address:        in.Address,
		Statement:      in.Statement,
		URI:            in.URI,
		Version:        in.Version,
		ChainID:        in.ChainID,
		Nonce:          in.Nonce,
		IssuedAt:       in.IssuedAt,
		ExpirationTime: in.ExpirationTime,
		NotBefore:      in.NotBefore,
		RequestID:      in.RequestID,
		Resources:      in.Resources,
	}
}

// Account identifies the signing wallet
type Account struct {
	Address   string `json:"address,omitempty"`
	PublicKey Binary `json:"publicKey"`
}

// Output is the proof a wallet returns for an Input
type Output struct {
	Account       Account `json:"account"`
	Signature     Binary  `json:"signature"`
	SignedMessage Binary  `json:"signedMessage"`
	SignatureType string  `json:"signatureType,omitempty"`
}

// Address returns the base58 wallet address of pub
func Address(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

// Signer returns the base58 address of the public key carried by output
func Signer(output Output) (string, error) {
	pub, err := output.Account.PublicKey.Bytes()
	if err != nil {
		return "", fmt.Errorf("public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidKey
	}
	return Address(pub), nil
}

// Sign produces the proof a wallet holding priv would return for input.
// The address is filled from the key when input leaves it empty.
func Sign(input Input, priv ed25519.PrivateKey) (Output, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Output{}, ErrInvalidKey
	}
	pub := priv.Public().(ed25519.PublicKey)
	msg := input.Message()
	if msg.Address == "" {
		msg.Address = Address(pub)
	}

	text := []byte(BuildMessage(msg))
	return Output{
		Account: Account{
			Address:   msg.Address,
			PublicKey: NewBinary(pub),
		},
		Signature:     NewBinary(ed25519.Sign(priv, text)),
		SignedMessage: NewBinary(text),
		SignatureType: "ed25519",
	}, nil
}

// Verify reports whether output is a valid proof for input
func Verify(input Input, output Output) bool {
	_, err := VerifyDetailed(input, output)
	return err == nil
}

// VerifyDetailed checks output against input and returns the signed message
func VerifyDetailed(input Input, output Output) (*Message, error) {
	return verifyAt(input, output, time.Now())
}

func verifyAt(input Input, output Output, now time.Time) (*Message, error) {
	pub, err := output.Account.PublicKey.Bytes()
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, ErrInvalidKey
	}

	sig, err := output.Signature.Bytes()
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, ErrBadSignature
	}
	if output.SignatureType != "" && output.SignatureType != "ed25519" {
		return nil, ErrBadSignature
	}

	signed, err := output.SignedMessage.Bytes()
	if err != nil {
		return nil, fmt.Errorf("signed message: %w", err)
	}

	msg, err := ParseMessage(signed)
	if err != nil {
		return nil, err
	}
	if err := matchInput(input, msg); err != nil {
		return nil, err
	}
	if BuildMessage(*msg) != string(signed) {
		return nil, ErrNotCanonical
	}

	address := Address(pub)
	if msg.Address != address {
		return nil, ErrAddressMismatch
	}
	if output.Account.Address != "" && output.Account.Address != address {
		return nil, ErrAddressMismatch
	}

	if err := checkValidity(msg, now); err != nil {
		return nil, err
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), signed, sig) {
		return nil, ErrBadSignature
	}
	return msg, nil
}

// matchInput requires the signed message to carry exactly the fields of the
// challenge. A field the challenge leaves empty must be absent from the
// message. The address alone may be left to the signing key.
func matchInput(input Input, msg *Message) error {
	if input.Domain == "" {
		return fmt.Errorf("%w: domain", ErrFieldMismatch)
	}
	if input.Address != "" && input.Address != msg.Address {
		return fmt.Errorf("%w: address", ErrFieldMismatch)
	}

	pairs := []struct {
		name     string
		expected string
		actual   string
	}{
		{"domain", input.Domain, msg.Domain},
		{"statement", input.Statement, msg.Statement},
		{"uri", input.URI, msg.URI},
		{"version", input.Version, msg.Version},
		{"chainId", input.ChainID, msg.ChainID},
		{"nonce", input.Nonce, msg.Nonce},
		{"issuedAt", input.IssuedAt, msg.IssuedAt},
		{"expirationTime", input.ExpirationTime, msg.ExpirationTime},
		{"notBefore", input.NotBefore, msg.NotBefore},
		{"requestId", input.RequestID, msg.RequestID},
	}
	for _, p := range pairs {
		if p.expected != p.actual {
			return fmt.Errorf("%w: %s", ErrFieldMismatch, p.name)
		}
	}

	if !slices.Equal(input.Resources, msg.Resources) {
		return fmt.Errorf("%w: resources", ErrFieldMismatch)
	}
	return nil
}

func checkValidity(msg *Message, now time.Time) error {
	if msg.ExpirationTime != "" {
		exp, err := time.Parse(time.RFC3339, msg.ExpirationTime)
		if err != nil {
			return fmt.Errorf("%w: expiration time", ErrMalformedMessage)
		}
		if !now.Before(exp) {
			return ErrOutsideValidity
		}
	}
	if msg.NotBefore != "" {
		nbf, err := time.Parse(time.RFC3339, msg.NotBefore)
		if err != nil {
			return fmt.Errorf("%w: not before", ErrMalformedMessage)
		}
		if now.Before(nbf) {
			return ErrOutsideValidity
		}
	}
	return nil
}
