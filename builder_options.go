package mindex

import (
	"sync"

	"github.com/mindex-go/mindex/perm"
)

const (
	// maxUserMetadata bounds the variable-length user metadata section.
	maxUserMetadata = 1 << 20

	// defaultBlocks and defaultErrors parameterize the default permutation
	// family: four meta-blocks tolerating up to three errors, which yields a
	// 16-bit splitter per permutation.
	defaultBlocks = 4
	defaultErrors = 3
)

// BuildOption is a functional option for configuring builds.
type BuildOption func(*buildConfig)

type buildConfig struct {
	family       *perm.Family
	id           int
	userMetadata []byte
	compression  compressionID
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		family: defaultFamily(),
	}
}

// defaultFamily returns the shared b=4, k=3 permutation family.
// Construction cannot fail for the default parameters.
var defaultFamily = sync.OnceValue(func() *perm.Family {
	f, err := perm.NewFamily(defaultBlocks, defaultErrors)
	if err != nil {
		panic("mindex: default permutation family: " + err.Error())
	}
	return f
})

// WithFamily selects the permutation family. The on-disk format stores the
// permutation itself, so loads do not depend on this option.
func WithFamily(f *perm.Family) BuildOption {
	return func(c *buildConfig) {
		c.family = f
	}
}

// WithPermutationID selects which permutation of the family this index is
// assigned. The outer multi-index driver builds one index per id.
func WithPermutationID(id int) BuildOption {
	return func(c *buildConfig) {
		c.id = id
	}
}

// WithUserMetadata attaches caller-defined metadata to the serialized
// index. The metadata is returned verbatim by UserMetadata after a load.
func WithUserMetadata(meta []byte) BuildOption {
	return func(c *buildConfig) {
		c.userMetadata = meta
	}
}

// WithCompression enables s2 compression of everything after the fixed
// header when the index is serialized. Compressed files can be read with
// Load but not memory-mapped with Open.
func WithCompression() BuildOption {
	return func(c *buildConfig) {
		c.compression = compressionS2
	}
}
