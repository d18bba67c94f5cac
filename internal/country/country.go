// Package country resolves free-form country input to canonical ISO 3166-1
// alpha-2 codes and answers EU membership questions. The lookup table is
// process-wide immutable configuration loaded once at startup, so EU
// membership or naming changes are data edits, not code changes.
package country

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed table.json
var embeddedTable embed.FS

var isoCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// Source identifies which branch of the normalization decision resolved
// the input. Fallback branches are named so callers (and tests) can tell a
// confident resolution from a best-effort one.
type Source string

const (
	// SourceISOCode means the input was already a 2-letter code.
	SourceISOCode Source = "iso_code"
	// SourceNameTable means the input matched the country-name lookup table.
	SourceNameTable Source = "name_table"
	// SourceVerbatim means unknown input was uppercased and passed through.
	// Callers must treat the result as a best guess, not authoritative.
	SourceVerbatim Source = "verbatim"
	// SourceDefault means empty input defaulted to the home country.
	SourceDefault Source = "home_default"
)

// tableFile is the on-disk/embedded shape of the country table.
type tableFile struct {
	Version     string            `json:"version"`
	HomeCountry string            `json:"home_country"`
	EUMembers   []string          `json:"eu_members"`
	Names       map[string]string `json:"names"`
}

// Registry holds the canonical country data. It is immutable after
// construction and safe for concurrent use without locking.
type Registry struct {
	version     string
	homeCountry string
	euMembers   map[string]struct{}
	names       map[string]string
}

// Load builds a Registry from the embedded table, optionally overridden by a
// JSON file at path (empty path means embedded only).
func Load(path string) (*Registry, error) {
	var raw []byte
	var err error

	if path != "" {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading country table %s: %w", path, err)
		}
	} else {
		raw, err = embeddedTable.ReadFile("table.json")
		if err != nil {
			return nil, fmt.Errorf("reading embedded country table: %w", err)
		}
	}

	var tf tableFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parsing country table: %w", err)
	}
	if tf.HomeCountry == "" {
		return nil, fmt.Errorf("country table %q missing home_country", tf.Version)
	}
	if len(tf.EUMembers) == 0 {
		return nil, fmt.Errorf("country table %q has empty eu_members", tf.Version)
	}

	reg := &Registry{
		version:     tf.Version,
		homeCountry: strings.ToUpper(tf.HomeCountry),
		euMembers:   make(map[string]struct{}, len(tf.EUMembers)),
		names:       make(map[string]string, len(tf.Names)),
	}
	for _, code := range tf.EUMembers {
		reg.euMembers[strings.ToUpper(code)] = struct{}{}
	}
	for name, code := range tf.Names {
		reg.names[strings.ToLower(name)] = strings.ToUpper(code)
	}

	return reg, nil
}

// MustLoad is Load for startup paths where a broken table is fatal.
func MustLoad(path string) *Registry {
	reg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return reg
}

// Version returns the table version string, for audit logging.
func (r *Registry) Version() string { return r.version }

// HomeCountry returns the tenant's home jurisdiction code.
func (r *Registry) HomeCountry() string { return r.homeCountry }

// CheckHomeCountry verifies that an externally configured home country
// agrees with the loaded table. The table is authoritative; the check
// exists to catch a country table swapped without updating the
// deployment config, or vice versa. An empty expectation passes.
func (r *Registry) CheckHomeCountry(expected string) error {
	if expected == "" || strings.EqualFold(expected, r.homeCountry) {
		return nil
	}
	return fmt.Errorf("configured home country %q does not match country table %q (home country %s)",
		expected, r.version, r.homeCountry)
}

// Normalize resolves a country code or localized name to a canonical
// 2-letter code. See NormalizeWithSource for the resolution rules.
func (r *Registry) Normalize(input string) string {
	code, _ := r.NormalizeWithSource(input)
	return code
}

// NormalizeWithSource resolves input and reports which branch matched:
//
//  1. empty input -> home country (SourceDefault)
//  2. 2-letter code, any case -> uppercased (SourceISOCode)
//  3. known localized name -> mapped code (SourceNameTable)
//  4. anything else -> uppercased verbatim (SourceVerbatim, best effort)
//
// Normalization is idempotent: feeding a result back in yields the same code.
func (r *Registry) NormalizeWithSource(input string) (string, Source) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return r.homeCountry, SourceDefault
	}

	if isoCodePattern.MatchString(trimmed) {
		return strings.ToUpper(trimmed), SourceISOCode
	}

	if code, ok := r.names[strings.ToLower(trimmed)]; ok {
		return code, SourceNameTable
	}

	return strings.ToUpper(trimmed), SourceVerbatim
}

// IsEUMember reports whether the given canonical code is an EU member state.
// The set includes the legacy "EL" alias for Greece used on EU filings.
func (r *Registry) IsEUMember(code string) bool {
	_, ok := r.euMembers[strings.ToUpper(code)]
	return ok
}

// EUMembers returns a copy of the member set, for API responses.
func (r *Registry) EUMembers() []string {
	members := make([]string, 0, len(r.euMembers))
	for code := range r.euMembers {
		members = append(members, code)
	}
	return members
}
