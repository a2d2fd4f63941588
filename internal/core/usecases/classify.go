package usecases

import "github.com/samirrijal/osmdash/internal/core/domain"

// Classify returns the first category, in declaration order, whose tag set
// contains tagValue. It reports false when nothing matches.
func Classify(tagValue string, taxonomy *domain.Taxonomy) (string, bool) {
	if tagValue == "" {
		return "", false
	}
	for c := range taxonomy.All() {
		if c.Contains(tagValue) {
			return c.Label, true
		}
	}
	return "", false
}

// ClassifyLabel is Classify with domain.OtherLabel standing in for no match.
func ClassifyLabel(tagValue string, taxonomy *domain.Taxonomy) string {
	if label, ok := Classify(tagValue, taxonomy); ok {
		return label
	}
	return domain.OtherLabel
}
