package model

// Candidate is one resolution result: a remote package together with the
// rank inputs used to order it.
type Candidate struct {
	Package

	// RepoPriority is the configured priority of the package's repository.
	RepoPriority int
	// RepoIndex is the repository's declaration order in the configuration.
	RepoIndex int
}

// String renders the candidate for prompts and error messages.
func (c Candidate) String() string {
	return c.Package.String()
}
