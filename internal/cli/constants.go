package cli

// Default values for CLI flags and output.
const (
	// MaxDescriptionLength is the maximum length of a package description in listings.
	MaxDescriptionLength = 60
	// TabWidth is the padding used by tabwriter output.
	TabWidth = 2
)
