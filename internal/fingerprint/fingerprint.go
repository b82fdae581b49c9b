// Package fingerprint computes the production-auditable run fingerprint:
// a single hash that changes if and only if a run's observable behavior
// changes, reproducible across machines given identical inputs, config,
// and seed. It has five component hashes — Code, Config, Dataset, Seed,
// Behavior — combined into one RunFingerprint, so a mismatch can be
// attributed to a specific component rather than treated as an opaque
// "something changed".
package fingerprint

import (
	"crypto/sha256"
	"fmt"

	segjson "github.com/segmentio/encoding/json"
)

// Version is the fingerprint format version, bumped whenever the
// canonicalization rules or component list changes in a way that would
// alter a previously recorded fingerprint's meaning.
const Version = "RUNFP_V2"

// Hash is a 32-byte SHA-256 digest, rendered as lowercase hex by String.
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", [32]byte(h)) }

// IsZero reports whether h is the unset zero value.
func (h Hash) IsZero() bool { return h == Hash{} }

// canonicalBytes encodes v as JSON via segmentio/encoding/json, whose
// struct-tag field ordering is stable across runs and machines (unlike map
// iteration order). Every value this package builds itself is made of
// integers, strings, and enums; ConfigFingerprint encodes whatever value it
// is given, and launch.Run passes the whole config.Config, whose float64
// fields (strategy parameters, risk limits in dollars) are encoded as JSON
// numbers.
func canonicalBytes(v any) []byte {
	b, err := segjson.Marshal(v)
	if err != nil {
		// Marshaling can only fail if a caller passed in something
		// unencodable, which is a programming error worth surfacing loudly
		// rather than silently degrading the fingerprint.
		panic(fmt.Sprintf("fingerprint: canonical encoding failed: %v", err))
	}
	return b
}

// hashOf returns the SHA-256 hash of v's canonical encoding.
func hashOf(v any) Hash {
	return sha256.Sum256(canonicalBytes(v))
}

// CodeFingerprint hashes the build identity: module version and the set of
// source hashes that actually executed (normally the Go module's own
// build info checksum, supplied by the caller so this package stays free
// of any dependency on debug.ReadBuildInfo's runtime behavior, which the
// hermetic core would otherwise have to special-case).
func CodeFingerprint(buildID string) Hash {
	return hashOf(struct{ BuildID string }{buildID})
}

// ConfigFingerprint hashes a canonicalized configuration value — normally
// the fully-resolved internal/config.Config after defaults and overrides
// have been applied, so two runs that resolve to the same effective
// configuration fingerprint identically even if their source files
// differed in formatting.
func ConfigFingerprint(cfg any) Hash {
	return hashOf(cfg)
}

// DatasetFingerprint hashes dataset identity: the dataset identifier string
// the caller passes (launch.Run passes the configured dataset ID) plus its
// recorded oracle Mapping version. It does not read the bundle's records,
// so changed tick data under an unchanged ID and mapping version leaves
// the fingerprint unchanged.
func DatasetFingerprint(datasetID string, mappingVersion uint32) Hash {
	return hashOf(struct {
		DatasetID      string
		MappingVersion uint32
	}{datasetID, mappingVersion})
}

// SeedFingerprint hashes the PRNG seed(s) a run was driven by — every
// source of randomness in the core (RandomTaker's seed, any Monte Carlo
// sensitivity draw) must be seeded from values folded in here, never from
// OS entropy, or two "identical" runs could silently diverge.
func SeedFingerprint(seeds ...int64) Hash {
	return hashOf(seeds)
}

// RunFingerprint combines the five component hashes into the final,
// production-auditable fingerprint: H(version || code || config || dataset
// || seed || behavior).
func RunFingerprint(code, config, dataset, seed, behavior Hash) Hash {
	return hashOf(struct {
		Version  string
		Code     Hash
		Config   Hash
		Dataset  Hash
		Seed     Hash
		Behavior Hash
	}{Version, code, config, dataset, seed, behavior})
}
