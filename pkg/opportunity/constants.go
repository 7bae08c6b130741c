package opportunity

// Constants holds every tunable of the scoring pipeline. It is passed by
// value and never mutated once built.
type Constants struct {
	// PriorWeight is the vote mass at which a category's own average and the
	// global prior carry equal weight.
	PriorWeight float64 `yaml:"prior_weight" json:"prior_weight"`

	DemandPercentile      float64 `yaml:"demand_percentile" json:"demand_percentile"`
	VotesPercentile       float64 `yaml:"votes_percentile" json:"votes_percentile"`
	CompetitionPercentile float64 `yaml:"competition_percentile" json:"competition_percentile"`
	GapPercentile         float64 `yaml:"gap_percentile" json:"gap_percentile"`

	DemandWeight             float64 `yaml:"demand_weight" json:"demand_weight"`
	GapWeight                float64 `yaml:"gap_weight" json:"gap_weight"`
	InverseCompetitionWeight float64 `yaml:"inverse_competition_weight" json:"inverse_competition_weight"`

	Scale float64 `yaml:"scale" json:"scale"`
}

// DefaultConstants returns the stock scoring configuration.
func DefaultConstants() Constants {
	return Constants{
		PriorWeight:              5000,
		DemandPercentile:         0.95,
		VotesPercentile:          0.95,
		CompetitionPercentile:    0.95,
		GapPercentile:            0.90,
		DemandWeight:             0.45,
		GapWeight:                0.35,
		InverseCompetitionWeight: 0.20,
		Scale:                    100,
	}
}

// WithDefaults fills zero or out-of-range fields from DefaultConstants.
// When all three weights are zero the default weights are used.
func (c Constants) WithDefaults() Constants {
	d := DefaultConstants()
	if c.PriorWeight <= 0 {
		c.PriorWeight = d.PriorWeight
	}
	fix := func(p *float64, def float64) {
		if *p <= 0 || *p > 1 {
			*p = def
		}
	}
	fix(&c.DemandPercentile, d.DemandPercentile)
	fix(&c.VotesPercentile, d.VotesPercentile)
	fix(&c.CompetitionPercentile, d.CompetitionPercentile)
	fix(&c.GapPercentile, d.GapPercentile)

	if c.DemandWeight < 0 {
		c.DemandWeight = 0
	}
	if c.GapWeight < 0 {
		c.GapWeight = 0
	}
	if c.InverseCompetitionWeight < 0 {
		c.InverseCompetitionWeight = 0
	}
	if c.DemandWeight+c.GapWeight+c.InverseCompetitionWeight == 0 {
		c.DemandWeight = d.DemandWeight
		c.GapWeight = d.GapWeight
		c.InverseCompetitionWeight = d.InverseCompetitionWeight
	}
	if c.Scale <= 0 {
		c.Scale = d.Scale
	}
	return c
}
