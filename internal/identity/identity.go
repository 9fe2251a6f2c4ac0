// Package identity computes content-derived identities: the SHA-256 of an
// image's bytes, and a canonical hash of an extraction parameter set. Both
// are stable across machines, runs, and key ordering.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
)

// HashImage returns the specimen identity for raw image bytes.
func HashImage(data []byte) model.Identity {
	sum := sha256.Sum256(data)
	return model.Identity(hex.EncodeToString(sum[:]))
}

// HashParams returns a stable hash of a parameter set. The value is rendered
// to canonical JSON (maps key-sorted, structs flattened through a JSON
// round-trip) so that key order never affects the result. A value that
// cannot be rendered canonically yields a ConfigurationError.
func HashParams(params any) (string, error) {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", resilience.NewConfigurationError(eris.Wrap(err, "identity: canonicalize params"))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON renders v as JSON with all object keys sorted. The
// marshal/unmarshal round-trip turns struct fields into map entries, which
// encoding/json then emits in sorted key order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
