package geography

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// maxSampleCandidates bounds the diagnostics attached to a failed resolution
const maxSampleCandidates = 10

// LocalityNotFoundError indicates no gazetteer candidate matched the address
// locality after the whole match cascade. It carries up to ten candidate
// names so the operator can see what the courier would have accepted.
type LocalityNotFoundError struct {
	City    string
	County  string
	Samples []string
}

// Error implements the error interface
func (e *LocalityNotFoundError) Error() string {
	if len(e.Samples) == 0 {
		return fmt.Sprintf("geography: locality %q not found in county %q", e.City, e.County)
	}
	return fmt.Sprintf("geography: locality %q not found in county %q (known: %s)",
		e.City, e.County, strings.Join(e.Samples, ", "))
}

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

// foldDiacritics transliterates accented letters to their base Latin letter
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a place name for comparison: lowercase, trimmed,
// internal whitespace collapsed, diacritics folded to base Latin letters.
// "Timișoara" and "timisoara" normalize identically.
func Normalize(name string) string {
	folded, _, err := transform.String(foldDiacritics, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// adminPrefixes are the administrative-type words that lead locality names in
// free-text addresses but not in the courier's gazetteer, or vice versa.
var adminPrefixes = []string{
	"municipiul",
	"mun.",
	"mun",
	"orasul",
	"oras",
	"ors.",
	"comuna",
	"com.",
	"com",
	"satul",
	"sat",
	"localitatea",
	"loc.",
	"municipality of",
	"city of",
	"commune of",
}

// StripAdminPrefix removes a leading administrative-type word from an already
// normalized name ("municipiul cluj-napoca" -> "cluj-napoca")
func StripAdminPrefix(normalized string) string {
	for _, prefix := range adminPrefixes {
		if strings.HasPrefix(normalized, prefix+" ") {
			return strings.TrimSpace(normalized[len(prefix)+1:])
		}
	}
	return normalized
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Locality is one entry of the courier's controlled locality vocabulary
type Locality struct {
	// Name is the canonical locality name
	Name string
	// County is the canonical county the locality belongs to
	County string
}

// Gazetteer is the port to the courier's geography service
type Gazetteer interface {
	// Localities returns the locality vocabulary for a canonical county
	Localities(ctx context.Context, county string) ([]Locality, error)
}

// Resolver maps free-text address localities onto the courier's canonical
// locality names. Address free text rarely matches the gazetteer exactly
// (diacritics, administrative prefixes, abbreviations), so resolution runs a
// cascade, first match wins:
//
//  1. exact match of normalized names
//  2. substring match either way
//  3. substring match after stripping administrative prefixes from both sides
type Resolver struct {
	gazetteer Gazetteer
	logger    *zap.Logger
}

// NewResolver creates a locality resolver
func NewResolver(gazetteer Gazetteer, logger *zap.Logger) *Resolver {
	return &Resolver{
		gazetteer: gazetteer,
		logger:    logger,
	}
}

// Resolve returns the canonical locality name for a free-text city within a
// free-text region. The region is resolved through the county variant table
// first; an unresolvable region falls back to DefaultCounty.
func (r *Resolver) Resolve(ctx context.Context, cityName, regionName string) (string, error) {
	county := ResolveCounty(regionName)
	candidates, err := r.gazetteer.Localities(ctx, county)
	if err != nil {
		return "", fmt.Errorf("geography: fetching localities for county %s: %w", county, err)
	}

	city := Normalize(cityName)
	if city == "" {
		return "", &LocalityNotFoundError{City: cityName, County: county}
	}

	// Exact match on normalized names
	for _, cand := range candidates {
		if Normalize(cand.Name) == city {
			return cand.Name, nil
		}
	}

	// Substring match either way ("timisoara" inside "municipiul timisoara")
	for _, cand := range candidates {
		cn := Normalize(cand.Name)
		if strings.Contains(cn, city) || strings.Contains(city, cn) {
			return cand.Name, nil
		}
	}

	// Substring match with administrative prefixes stripped from both sides
	stripped := StripAdminPrefix(city)
	for _, cand := range candidates {
		cn := StripAdminPrefix(Normalize(cand.Name))
		if strings.Contains(cn, stripped) || strings.Contains(stripped, cn) {
			return cand.Name, nil
		}
	}

	samples := make([]string, 0, maxSampleCandidates)
	for _, cand := range candidates {
		if len(samples) == maxSampleCandidates {
			break
		}
		samples = append(samples, cand.Name)
	}
	r.logger.Warn("locality not found in courier vocabulary",
		zap.String("city", cityName),
		zap.String("county", county),
		zap.Int("candidates", len(candidates)),
	)
	return "", &LocalityNotFoundError{City: cityName, County: county, Samples: samples}
}
