package candidates

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithMaxCandidates caps the total number of candidates produced per
// owner. Zero or negative means unbounded.
func WithMaxCandidates(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxCandidates = n
		}
	}
}
