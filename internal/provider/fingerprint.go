package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/passbi/passbi_travel/internal/models"
)

// Fingerprint builds the cache key for a request:
// origin|destination|date|passengers|max_connections|modes
func Fingerprint(req models.SearchRequest) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		strings.ToLower(strings.TrimSpace(req.Origin)),
		strings.ToLower(strings.TrimSpace(req.Destination)),
		req.Date,
		req.Passengers,
		req.MaxConnections,
		modesKey(req.Modes),
	)
}

func modesKey(modes []models.TransportMode) string {
	if len(modes) == 0 {
		return "all"
	}

	unique := make(map[models.TransportMode]struct{}, len(modes))
	for _, m := range modes {
		unique[m] = struct{}{}
	}
	if len(unique) == len(models.AllModes) {
		return "all"
	}

	names := make([]string, 0, len(unique))
	for m := range unique {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return strings.Join(names, "-")
}
