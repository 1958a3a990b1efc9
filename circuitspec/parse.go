package circuitspec

import (
	"fmt"
	"math/big"
	"strings"
)

// NonceHexLen is the length of a normalized 128-bit nonce.
const NonceHexLen = 32

var nonceModulus = new(big.Int).Lsh(big.NewInt(1), 128)

// ParsePublicInputBigInt parses a decimal or 0x-prefixed hexadecimal numeral.
func ParsePublicInputBigInt(value string) (*big.Int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidPublicInput)
	}
	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v = v[2:]
		base = 16
	}
	n, ok := new(big.Int).SetString(v, base)
	if !ok || n.Sign() < 0 || v == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPublicInput, value)
	}
	return n, nil
}

// ParsePublicInputToNumber narrows a public input to int64. Use the big.Int
// path for nonces and hashes, which exceed this range.
func ParsePublicInputToNumber(value string) (int64, error) {
	n, err := ParsePublicInputBigInt(value)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: %q overflows int64", ErrInvalidPublicInput, value)
	}
	return n.Int64(), nil
}

// NormalizeChallengeNonce recovers the 128-bit nonce embedded in the low bits
// of a field element and renders it as 32 lowercase hex characters.
func NormalizeChallengeNonce(publicInput string) (string, error) {
	n, err := ParsePublicInputBigInt(publicInput)
	if err != nil {
		return "", err
	}
	low := new(big.Int).Mod(n, nonceModulus)
	return fmt.Sprintf("%0*x", NonceHexLen, low), nil
}

// NonceToPublicInput is the inverse used by provers: the nonce is placed in the
// low 128 bits of the field element.
func NonceToPublicInput(nonceHex string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(nonceHex, "0x"), 16)
	if !ok || n.Sign() < 0 || n.Cmp(nonceModulus) >= 0 {
		return "", fmt.Errorf("%w: nonce %q", ErrInvalidPublicInput, nonceHex)
	}
	return "0x" + fmt.Sprintf("%0*x", NonceHexLen, n), nil
}
