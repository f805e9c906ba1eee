package differ

// Option is a functional option for configuring a Differ.
type Option func(*differ)

// WithIgnoredFields skips the given dot paths and everything beneath them.
func WithIgnoredFields(paths ...string) Option {
	return func(d *differ) {
		for _, p := range paths {
			d.ignoreFields[p] = true
		}
	}
}

// WithPositionalConfidence sets the confidence reported for trailing
// array additions and removals.
func WithPositionalConfidence(confidence float64) Option {
	return func(d *differ) {
		if confidence >= 0 && confidence <= 1 {
			d.positional = confidence
		}
	}
}
