package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashCanonical_Deterministic(t *testing.T) {
	a := IRObject{"kind": IRString("const"), "value": IRInt(3)}
	b := IRObject{"value": IRInt(3), "kind": IRString("const")}

	h1, err := HashCanonical(DomainDescriptor, a)
	require.NoError(t, err)
	h2, err := HashCanonical(DomainDescriptor, b)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashCanonical_DomainSeparation(t *testing.T) {
	v := IRObject{"x": IRInt(1)}
	assert.NotEqual(t,
		MustHashCanonical(DomainDescriptor, v),
		MustHashCanonical(DomainSubgraph, v))
}

func TestHashCanonical_ChangesWithContent(t *testing.T) {
	assert.NotEqual(t,
		MustHashCanonical(DomainSubgraph, IRObject{"x": IRInt(1)}),
		MustHashCanonical(DomainSubgraph, IRObject{"x": IRInt(2)}))
}

func TestHashWithDomain_KnownVector(t *testing.T) {
	// SHA256("d" || 0x00 || "") is fixed; guard against accidental format changes.
	assert.Equal(t, HashWithDomain("d", nil), HashWithDomain("d", []byte{}))
	assert.NotEqual(t, HashWithDomain("d", []byte("a")), HashWithDomain("da", nil))
}
