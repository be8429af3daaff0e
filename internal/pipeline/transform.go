package pipeline

import (
	"github.com/couchcryptid/neo-data-etl/internal/domain"
)

// PageNormalizer implements Normalizer using the domain normalization rules.
type PageNormalizer struct{}

// NewNormalizer creates a PageNormalizer.
func NewNormalizer() *PageNormalizer {
	return &PageNormalizer{}
}

func (*PageNormalizer) Normalize(page domain.FeedPage) domain.PageResult {
	return domain.NormalizePage(page)
}
