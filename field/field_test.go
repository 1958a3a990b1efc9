package field_test

import (
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zentity/zk-attest/field"
)

func TestReduceHashToField(t *testing.T) {
	// SHA-256 of "hello"
	digest := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	withPrefix, err := field.ReduceHashToField("0x" + digest)
	require.NoError(t, err)
	withoutPrefix, err := field.ReduceHashToField(digest)
	require.NoError(t, err)
	assert.Equal(t, withPrefix, withoutPrefix)

	raw, _ := new(big.Int).SetString(digest, 16)
	expected := new(big.Int).Mod(raw, fr.Modulus())
	assert.Equal(t, expected.String(), withPrefix)
}

func TestReduceHashToFieldWrapsModulus(t *testing.T) {
	p := fr.Modulus()
	over := new(big.Int).Add(p, big.NewInt(7))

	got, err := field.ReduceHashToField(over.Text(16))
	require.NoError(t, err)
	assert.Equal(t, "7", got)
}

func TestReduceHashToFieldRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "0x", "zz12", "0x-ff", "12 34"} {
		_, err := field.ReduceHashToField(in)
		assert.ErrorIs(t, err, field.ErrInvalidHex, "input %q", in)
	}
}

func TestComputeClaimHashDeterministic(t *testing.T) {
	doc, err := field.ReduceHashToField("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	require.NoError(t, err)
	docField, _ := new(big.Int).SetString(doc, 10)

	first, err := field.ComputeClaimHash(big.NewInt(19900101), docField)
	require.NoError(t, err)
	second, err := field.ComputeClaimHash(big.NewInt(19900101), docField)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "0x"))
	assert.Len(t, first, 66)
	assert.Equal(t, strings.ToLower(first), first)
}

func TestComputeClaimHashSensitiveToInputs(t *testing.T) {
	base, err := field.ComputeClaimHash(big.NewInt(100), big.NewInt(200))
	require.NoError(t, err)

	seen := map[string]bool{base: true}
	for i := int64(1); i <= 8; i++ {
		v, err := field.ComputeClaimHash(big.NewInt(100+i), big.NewInt(200))
		require.NoError(t, err)
		d, err := field.ComputeClaimHash(big.NewInt(100), big.NewInt(200+i))
		require.NoError(t, err)
		assert.False(t, seen[v], "collision for value perturbation %d", i)
		assert.False(t, seen[d], "collision for document perturbation %d", i)
		seen[v], seen[d] = true, true
	}

	swapped, err := field.ComputeClaimHash(big.NewInt(200), big.NewInt(100))
	require.NoError(t, err)
	assert.NotEqual(t, base, swapped)
}

func TestComputeClaimHashRejectsNil(t *testing.T) {
	_, err := field.ComputeClaimHash(nil, big.NewInt(1))
	assert.ErrorIs(t, err, field.ErrInvalidValue)
}

func TestBackendConcurrentInit(t *testing.T) {
	b := field.NewBackend()

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := b.ComputeClaimHash(big.NewInt(42), big.NewInt(43))
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}

	m, err := b.Modulus()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Cmp(fr.Modulus()))
}

func TestEqualAcrossEncodings(t *testing.T) {
	b := field.Default()

	eq, err := b.Equal("255", "0xff")
	require.NoError(t, err)
	assert.True(t, eq)

	p := fr.Modulus()
	eq, err = b.Equal("1", new(big.Int).Add(p, big.NewInt(1)).String())
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = b.Equal("1", "2")
	require.NoError(t, err)
	assert.False(t, eq)

	_, err = b.Equal("nope", "1")
	assert.Error(t, err)
}

func TestClaimHashSchemes(t *testing.T) {
	b := field.NewBackend()
	v, d := big.NewInt(20000101), big.NewInt(987654321)

	def, err := b.ComputeClaimHash(v, d)
	require.NoError(t, err)
	mimc, err := b.ClaimHash(field.SchemeMiMC, v, d)
	require.NoError(t, err)
	assert.Equal(t, def, mimc)

	pos, err := b.ClaimHash(field.SchemePoseidon, v, d)
	require.NoError(t, err)
	assert.Len(t, pos, 66)
	assert.NotEqual(t, mimc, pos)

	_, err = b.ClaimHash("sha256", v, d)
	assert.ErrorIs(t, err, field.ErrUnknownScheme)
}

func TestClaimHashReducesInputs(t *testing.T) {
	p := fr.Modulus()
	direct, err := field.ComputeClaimHash(big.NewInt(5), big.NewInt(6))
	require.NoError(t, err)
	wrapped, err := field.ComputeClaimHash(new(big.Int).Add(p, big.NewInt(5)), big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, direct, wrapped)
}
