// Package codec losslessly transforms a finalized BuildPlan into a compact,
// versioned artifact and back.
//
// Object keys with a legend entry are replaced by their short code; keys
// without one pass through unchanged. String leaf values receive phrase
// substitution strictly at whole-token boundaries, never inside a word, so
// substitution cannot corrupt unrelated text. Every artifact embeds the
// legend version it was produced with.
package codec

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/errors"
)

// Artifact is the persisted external contract: a legend version stamp plus
// the legend-substituted document tree.
type Artifact struct {
	LegendVersion string          `json:"legend_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Result is the outcome of decompression. Unrecognized holds values keyed by
// codes the current codec build does not know, preserved verbatim by the
// JSON path of the node that carried them.
type Result struct {
	Plan         *buildplan.BuildPlan
	Unrecognized map[string]json.RawMessage
}

// Codec compresses and decompresses BuildPlans against a legend registry
type Codec struct {
	registry *Registry
}

// New creates a codec over the given registry
func New(registry *Registry) *Codec {
	return &Codec{registry: registry}
}

// Compress transforms a finalized plan into an artifact stamped with the
// given legend version.
func (c *Codec) Compress(plan *buildplan.BuildPlan, legendVersion string) (*Artifact, error) {
	if !plan.Finalized {
		return nil, errors.New(errors.ErrCodePlanNotFinalized, "compression operates on finalized plans only")
	}

	legend, err := c.registry.Lookup(legendVersion)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecMalformedArtifact, "marshal plan", err)
	}

	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecMalformedArtifact, "reparse plan", err)
	}

	encoded := encodeNode(tree, legend)

	// encoding/json marshals map keys in sorted order, so identical plans
	// compress to byte-identical artifacts.
	payload, err := json.Marshal(encoded)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecMalformedArtifact, "marshal payload", err)
	}

	return &Artifact{LegendVersion: legendVersion, Payload: payload}, nil
}

// Decompress restores the plan from an artifact. An artifact stamped with an
// unrecognized legend version fails explicitly; no best-effort decode is
// attempted. Codes unknown to this build land in Result.Unrecognized.
func (c *Codec) Decompress(artifact *Artifact) (*Result, error) {
	legend, err := c.registry.Lookup(artifact.LegendVersion)
	if err != nil {
		return nil, err
	}

	var tree interface{}
	if err := json.Unmarshal(artifact.Payload, &tree); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecMalformedArtifact, "parse payload", err)
	}

	unrecognized := map[string]json.RawMessage{}
	decoded := decodeNode(tree, legend, "", unrecognized)

	raw, err := json.Marshal(decoded)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecMalformedArtifact, "remarshal decoded tree", err)
	}

	var plan buildplan.BuildPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecMalformedArtifact, "decoded tree is not a plan", err)
	}

	return &Result{Plan: &plan, Unrecognized: unrecognized}, nil
}

// EstimateRatio reports the size reduction of an artifact payload relative to
// the canonical plan encoding. Advisory only; display, never correctness.
func EstimateRatio(plan *buildplan.BuildPlan, artifact *Artifact) float64 {
	canonical, err := buildplan.Canonicalize(plan)
	if err != nil || len(canonical) == 0 {
		return 1.0
	}
	return float64(len(artifact.Payload)) / float64(len(canonical))
}

// Marshal encodes an artifact in its external JSON form
func (a *Artifact) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalArtifact parses an artifact from its external JSON form
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecMalformedArtifact, "parse artifact", err)
	}
	if a.LegendVersion == "" {
		return nil, errors.New(errors.ErrCodeCodecMalformedArtifact, "artifact has no legend version stamp")
	}
	return &a, nil
}

// encodeNode recursively substitutes legend codes into a document tree
func encodeNode(node interface{}, legend *Legend) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			out[encodeKey(key, legend)] = encodeNode(value, legend)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = encodeNode(item, legend)
		}
		return out

	case string:
		return encodeString(v, legend)

	default:
		return v
	}
}

func encodeKey(key string, legend *Legend) string {
	if code, ok := legend.KeyCode(key); ok {
		return code
	}
	// Unknown keys pass through, escaped when they collide with the code
	// namespace so decoding stays unambiguous.
	if strings.HasPrefix(key, Sigil) {
		return Sigil + key
	}
	return key
}

// encodeString substitutes phrase codes at whole-token boundaries. Tokens are
// split on single spaces so the exact spacing of the original text survives
// the round trip.
func encodeString(s string, legend *Legend) string {
	tokens := strings.Split(s, " ")
	for i, token := range tokens {
		if code, ok := legend.PhraseCode(token); ok {
			tokens[i] = code
			continue
		}
		if strings.HasPrefix(token, Sigil) {
			tokens[i] = Sigil + token
		}
	}
	return strings.Join(tokens, " ")
}

// decodeNode reverses encodeNode. Keys carrying the sigil but unknown to the
// legend are preserved verbatim in the unrecognized bucket under their path.
func decodeNode(node interface{}, legend *Legend, path string, unrecognized map[string]json.RawMessage) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			canonical, known := decodeKey(key, legend)
			if !known {
				raw, err := json.Marshal(value)
				if err == nil {
					unrecognized[joinPath(path, key)] = raw
				}
				continue
			}
			out[canonical] = decodeNode(value, legend, joinPath(path, canonical), unrecognized)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = decodeNode(item, legend, joinPath(path, strconv.Itoa(i)), unrecognized)
		}
		return out

	case string:
		return decodeString(v, legend)

	default:
		return v
	}
}

// decodeKey returns the canonical key and whether the key is usable in the
// decoded tree. Unescaped sigil keys without a legend entry are codes from a
// newer legend build and belong in the unrecognized bucket.
func decodeKey(key string, legend *Legend) (string, bool) {
	if !strings.HasPrefix(key, Sigil) {
		return key, true
	}
	if strings.HasPrefix(key, Sigil+Sigil) {
		return key[len(Sigil):], true
	}
	if canonical, ok := legend.KeyFor(key); ok {
		return canonical, true
	}
	return "", false
}

func decodeString(s string, legend *Legend) string {
	tokens := strings.Split(s, " ")
	for i, token := range tokens {
		if !strings.HasPrefix(token, Sigil) {
			continue
		}
		if strings.HasPrefix(token, Sigil+Sigil) {
			tokens[i] = token[len(Sigil):]
			continue
		}
		if canonical, ok := legend.PhraseFor(token); ok {
			tokens[i] = canonical
		}
		// Unknown phrase codes stay verbatim: they decode identically under a
		// newer legend and remain harmless text under this one.
	}
	return strings.Join(tokens, " ")
}

func joinPath(base, elem string) string {
	if base == "" {
		return elem
	}
	return base + "." + elem
}

