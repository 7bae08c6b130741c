package opportunity

// Factors are the normalized inputs of an opportunity score.
type Factors struct {
	DemandNorm      float64 `json:"demand_norm"`
	CompetitionNorm float64 `json:"competition_norm"`
	ConfidenceNorm  float64 `json:"confidence_norm"`
	GapNorm         float64 `json:"rating_gap_norm"`
	GapEffective    float64 `json:"gap_effective"`
}

// Normalize derives the factors of one candidate row.
//
// Demand, competition and confidence are log-compressed against their
// percentile ceilings; the rating gap is linear against the gap cap. The gap
// only counts as far as the extension's own votes make it believable.
func Normalize(row *Candidate, d Distribution) Factors {
	f := Factors{
		DemandNorm:      LogNorm(float64(row.Users), d.UsersCeiling),
		CompetitionNorm: LogNorm(float64(row.CompetitionCount), d.CompetitionCeiling),
		ConfidenceNorm:  LogNorm(float64(row.RatingVotes), d.VotesCeiling),
		GapNorm:         LinearNorm(row.RatingGap, d.GapCap),
	}
	f.GapEffective = Finite(f.GapNorm * f.ConfidenceNorm)
	return f
}

// Score combines the factors into a 0..Scale opportunity score.
func Score(f Factors, c Constants) float64 {
	return Finite(c.Scale * (c.DemandWeight*f.DemandNorm +
		c.GapWeight*f.GapEffective +
		c.InverseCompetitionWeight*(1-f.CompetitionNorm)))
}
