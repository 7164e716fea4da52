package codec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/planforge/planforge/internal/errors"
)

// Sigil prefixes every legend code. Passthrough keys and string tokens that
// happen to begin with the sigil are escaped during compression so decoding
// can always tell a code from ordinary text.
const Sigil = "#"

// Legend is a versioned, bidirectional mapping from canonical field names and
// whole-word phrase tokens to short codes. A built Legend is read-only and
// safe for unsynchronized concurrent reads.
type Legend struct {
	Version string

	keys    map[string]string // canonical key -> code
	phrases map[string]string // canonical token -> code

	keyByCode    map[string]string // code -> canonical key
	phraseByCode map[string]string // code -> canonical token
}

// NewLegend builds a legend and verifies both mappings are bijective and
// every code carries the sigil prefix.
func NewLegend(version string, keys, phrases map[string]string) (*Legend, error) {
	if strings.TrimSpace(version) == "" {
		return nil, errors.New(errors.ErrCodeCodecLegendInvalid, "legend version cannot be empty")
	}

	l := &Legend{
		Version:      version,
		keys:         make(map[string]string, len(keys)),
		phrases:      make(map[string]string, len(phrases)),
		keyByCode:    make(map[string]string, len(keys)),
		phraseByCode: make(map[string]string, len(phrases)),
	}

	for canonical, code := range keys {
		if err := checkCode(code); err != nil {
			return nil, err
		}
		if prev, dup := l.keyByCode[code]; dup {
			return nil, errors.New(errors.ErrCodeCodecLegendInvalid,
				fmt.Sprintf("key code %s maps both %q and %q", code, prev, canonical))
		}
		l.keys[canonical] = code
		l.keyByCode[code] = canonical
	}

	for canonical, code := range phrases {
		if strings.ContainsAny(canonical, " \t\n") {
			return nil, errors.New(errors.ErrCodeCodecLegendInvalid,
				fmt.Sprintf("phrase %q must be a single whole token", canonical))
		}
		if err := checkCode(code); err != nil {
			return nil, err
		}
		if prev, dup := l.phraseByCode[code]; dup {
			return nil, errors.New(errors.ErrCodeCodecLegendInvalid,
				fmt.Sprintf("phrase code %s maps both %q and %q", code, prev, canonical))
		}
		l.phrases[canonical] = code
		l.phraseByCode[code] = canonical
	}

	return l, nil
}

func checkCode(code string) error {
	if !strings.HasPrefix(code, Sigil) || len(code) < 2 {
		return errors.New(errors.ErrCodeCodecLegendInvalid,
			fmt.Sprintf("code %q must start with %q", code, Sigil))
	}
	if strings.ContainsAny(code, " \t\n") {
		return errors.New(errors.ErrCodeCodecLegendInvalid,
			fmt.Sprintf("code %q cannot contain whitespace", code))
	}
	return nil
}

// KeyCode returns the code for a canonical object key, if one exists
func (l *Legend) KeyCode(canonical string) (string, bool) {
	code, ok := l.keys[canonical]
	return code, ok
}

// KeyFor returns the canonical object key for a code, if one exists
func (l *Legend) KeyFor(code string) (string, bool) {
	canonical, ok := l.keyByCode[code]
	return canonical, ok
}

// PhraseCode returns the code for a canonical phrase token, if one exists
func (l *Legend) PhraseCode(token string) (string, bool) {
	code, ok := l.phrases[token]
	return code, ok
}

// PhraseFor returns the canonical phrase token for a code, if one exists
func (l *Legend) PhraseFor(code string) (string, bool) {
	token, ok := l.phraseByCode[code]
	return token, ok
}

// Registry holds every legend version a codec build knows about.
// Lookups after construction are lock-free reads.
type Registry struct {
	mu      sync.RWMutex
	legends map[string]*Legend
}

// NewRegistry creates a registry pre-loaded with the built-in legends
func NewRegistry() *Registry {
	r := &Registry{legends: map[string]*Legend{}}
	r.Register(builtinLegendV1())
	return r
}

// Register adds a legend version; later registrations with the same version
// replace earlier ones.
func (r *Registry) Register(l *Legend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.legends[l.Version] = l
}

// Lookup returns the legend for a version or an UnknownLegendVersion error
func (r *Registry) Lookup(version string) (*Legend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.legends[version]
	if !ok {
		return nil, errors.NewUnknownLegendVersionError(version)
	}
	return l, nil
}

// Versions lists the registered legend versions
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.legends))
	for v := range r.legends {
		out = append(out, v)
	}
	return out
}

// LegendVersion1 is the first shipped legend
const LegendVersion1 = "v1"

func builtinLegendV1() *Legend {
	l, err := NewLegend(LegendVersion1,
		map[string]string{
			"id":                  "#i",
			"project":             "#p",
			"description":         "#d",
			"starter_prompt":      "#sp",
			"stack":               "#sk",
			"file_tree":           "#ft",
			"phases":              "#ph",
			"category":            "#c",
			"tasks":               "#t",
			"title":               "#ti",
			"file_path":           "#fp",
			"priority":            "#pr",
			"acceptance_criteria": "#ac",
			"done":                "#dn",
			"finalized":           "#fz",
			"fingerprint":         "#fg",
			"created_at":          "#ca",
			"path":                "#pa",
			"dir":                 "#dr",
			"children":            "#ch",
		},
		map[string]string{
			"foundational-setup": "#f1",
			"core-logic":         "#f2",
			"interface":          "#f3",
			"verification":       "#f4",
			"service":            "#w1",
			"backend":            "#w2",
			"frontend":           "#w3",
			"database":           "#w4",
			"implement":          "#w5",
			"endpoint":           "#w6",
			"authentication":     "#w7",
			"configuration":      "#w8",
		},
	)
	if err != nil {
		// The builtin legend is fixed at compile time; a failure here is a
		// programming error.
		panic(err)
	}
	return l
}
