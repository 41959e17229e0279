package prospect

import (
	"github.com/hazyhaar/prospect/internal/places"
	"github.com/hazyhaar/prospect/internal/store"
)

// Business is the persisted record for one discovered business.
type Business = store.Business

// Query describes one discovery request.
type Query = places.Query
