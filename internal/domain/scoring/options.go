package scoring

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithScaledScores divides attention scores by sqrt(key width) before the
// softmax. The shipped weights were trained without scaling.
func WithScaledScores(enabled bool) Option {
	return func(m *Model) {
		m.scaled = enabled
	}
}
