package shared

// ResolutionStatus classifies the outcome of resolving a user-supplied
// reference (an id or a name) to a stored entity.
type ResolutionStatus string

const (
	// Found means exactly one entity matched.
	Found ResolutionStatus = "found"
	// NotFound means nothing matched.
	NotFound ResolutionStatus = "not_found"
	// Ambiguous means more than one entity matched.
	Ambiguous ResolutionStatus = "ambiguous"
)
