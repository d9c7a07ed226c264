package anaf

import "strings"

// splitRegistryAddress splits the registry's single-line address into street,
// locality and county. The registry formats addresses as comma-separated
// segments with type markers, e.g.
//
//	JUD. TIMIS, MUN. TIMISOARA, STR. LIBERTATII, NR.10
//
// Segments without a recognized marker are kept as part of the street.
func splitRegistryAddress(adresa string) (street, city, county string) {
	var streetParts []string
	for _, segment := range strings.Split(adresa, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		upper := strings.ToUpper(segment)
		switch {
		case strings.HasPrefix(upper, "JUD.") || strings.HasPrefix(upper, "JUDETUL "):
			county = trimMarker(segment)
		case strings.HasPrefix(upper, "MUN."), strings.HasPrefix(upper, "ORS."),
			strings.HasPrefix(upper, "ORAS "), strings.HasPrefix(upper, "SAT "),
			strings.HasPrefix(upper, "COM."), strings.HasPrefix(upper, "MUNICIPIUL "):
			city = trimMarker(segment)
		case upper == "MUNICIPIUL BUCURESTI" || strings.HasPrefix(upper, "SECTOR"):
			if city == "" {
				city = segment
			}
		default:
			streetParts = append(streetParts, segment)
		}
	}
	return strings.Join(streetParts, ", "), city, county
}

// trimMarker drops the leading type marker from a registry address segment
func trimMarker(segment string) string {
	if i := strings.IndexAny(segment, ". "); i >= 0 {
		return strings.TrimSpace(segment[i+1:])
	}
	return segment
}
