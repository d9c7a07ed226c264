package geography

// Canonical county names as the courier's geography service spells them,
// plus the variants seen in free-text shipping addresses: diacritic spellings
// fold to the same key, and the table below adds plate codes, historical and
// foreign-language names. Lookups go through Normalize first.

// DefaultCounty is the safe fallback when a region cannot be resolved.
// Orders with an unrecognizable county are routed for manual review rather
// than rejected outright.
const DefaultCounty = "Bucuresti"

// counties maps the normalized county name to its canonical spelling
var counties = map[string]string{
	"alba":            "Alba",
	"arad":            "Arad",
	"arges":           "Arges",
	"bacau":           "Bacau",
	"bihor":           "Bihor",
	"bistrita-nasaud": "Bistrita-Nasaud",
	"botosani":        "Botosani",
	"brasov":          "Brasov",
	"braila":          "Braila",
	"buzau":           "Buzau",
	"caras-severin":   "Caras-Severin",
	"calarasi":        "Calarasi",
	"cluj":            "Cluj",
	"constanta":       "Constanta",
	"covasna":         "Covasna",
	"dambovita":       "Dambovita",
	"dolj":            "Dolj",
	"galati":          "Galati",
	"giurgiu":         "Giurgiu",
	"gorj":            "Gorj",
	"harghita":        "Harghita",
	"hunedoara":       "Hunedoara",
	"ialomita":        "Ialomita",
	"iasi":            "Iasi",
	"ilfov":           "Ilfov",
	"maramures":       "Maramures",
	"mehedinti":       "Mehedinti",
	"mures":           "Mures",
	"neamt":           "Neamt",
	"olt":             "Olt",
	"prahova":         "Prahova",
	"satu mare":       "Satu Mare",
	"salaj":           "Salaj",
	"sibiu":           "Sibiu",
	"suceava":         "Suceava",
	"teleorman":       "Teleorman",
	"timis":           "Timis",
	"tulcea":          "Tulcea",
	"vaslui":          "Vaslui",
	"valcea":          "Valcea",
	"vrancea":         "Vrancea",
	"bucuresti":       "Bucuresti",
}

// countyVariants maps alternative spellings to the canonical map key:
// registration plate codes, hyphen/space variants, historical and
// foreign-language names that show up in imported address books.
var countyVariants = map[string]string{
	// plate codes
	"ab": "alba", "ar": "arad", "ag": "arges", "bc": "bacau", "bh": "bihor",
	"bn": "bistrita-nasaud", "bt": "botosani", "bv": "brasov", "br": "braila",
	"bz": "buzau", "cs": "caras-severin", "cl": "calarasi", "cj": "cluj",
	"ct": "constanta", "cv": "covasna", "db": "dambovita", "dj": "dolj",
	"gl": "galati", "gr": "giurgiu", "gj": "gorj", "hr": "harghita",
	"hd": "hunedoara", "il": "ialomita", "is": "iasi", "if": "ilfov",
	"mm": "maramures", "mh": "mehedinti", "ms": "mures", "nt": "neamt",
	"ot": "olt", "ph": "prahova", "sm": "satu mare", "sj": "salaj",
	"sb": "sibiu", "sv": "suceava", "tr": "teleorman", "tm": "timis",
	"tl": "tulcea", "vs": "vaslui", "vl": "valcea", "vn": "vrancea",
	"b": "bucuresti",

	// spacing/hyphen variants
	"bistrita nasaud": "bistrita-nasaud",
	"caras severin":   "caras-severin",
	"satu-mare":       "satu mare",

	// old official spelling
	"arges county":    "arges",
	"judetul timis":   "timis",
	"judetul cluj":    "cluj",
	"judetul ilfov":   "ilfov",
	"municipiul bucuresti": "bucuresti",

	// foreign-language names
	"bucharest": "bucuresti",
	"bukarest":  "bucuresti",
	"temes":     "timis",
	"kolozs":    "cluj",
	"jassy":     "iasi",
	"kronstadt": "brasov",
}

// ResolveCounty maps a free-text region name onto the courier's canonical
// county spelling. Unresolvable input falls back to DefaultCounty; region
// resolution must not block an order.
func ResolveCounty(name string) string {
	key := Normalize(name)
	if canonical, ok := counties[key]; ok {
		return canonical
	}
	if alias, ok := countyVariants[key]; ok {
		return counties[alias]
	}
	// A trailing "county"/"judet" qualifier is common in imported addresses
	for _, suffix := range []string{" county", " judet"} {
		if trimmed, found := cutSuffix(key, suffix); found {
			if canonical, ok := counties[trimmed]; ok {
				return canonical
			}
			if alias, ok := countyVariants[trimmed]; ok {
				return counties[alias]
			}
		}
	}
	return DefaultCounty
}

func cutSuffix(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}
