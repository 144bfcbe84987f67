package config

// ===================================================================
//                           Agent hyperparameters
// ===================================================================

// Hyperparameters are the learning settings of an agent. The trainer only
// reads them to log the run configuration.
type Hyperparameters struct {
	LearningRate float64 `json:"lr"`
	Discount     float64 `json:"gamma"`
	MinEpsilon   float64 `json:"min_epsilon"`
	EpsilonDecay float64 `json:"epsilon_decay"`
	// Lambda weights the eligibility trace / regularisation term.
	Lambda            float64 `json:"lambda"`
	FourierOrder      int     `json:"fourier_order"`
	MaxNonZeroFourier int     `json:"max_nonzero_fourier"`
	// LearningStart is the lifetime decision count before policy actions are used.
	LearningStart int `json:"learning_start"`
}

// DefaultHyperparameters mirrors the settings the baselines were tuned with.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		LearningRate:      0.0001,
		Discount:          0.95,
		MinEpsilon:        0.005,
		EpsilonDecay:      0.9999,
		Lambda:            0.1,
		FourierOrder:      7,
		MaxNonZeroFourier: 2,
		LearningStart:     0,
	}
}

// Fields returns the hyperparameters as named scalars, in a stable order.
func (h Hyperparameters) Fields() []Field {
	return []Field{
		{"lr", h.LearningRate},
		{"gamma", h.Discount},
		{"min_epsilon", h.MinEpsilon},
		{"epsilon_decay", h.EpsilonDecay},
		{"lambda", h.Lambda},
		{"fourier_order", float64(h.FourierOrder)},
		{"max_nonzero_fourier", float64(h.MaxNonZeroFourier)},
		{"learning_start", float64(h.LearningStart)},
	}
}

// Field is one named scalar.
type Field struct {
	Name  string
	Value float64
}
