package domain

// StreamRankingProfile weights the stream use case's scoring pass.
type StreamRankingProfile struct {
	TitleMatchWeight float64
	YearMatchWeight  float64
	EpisodeWeight    float64
	QualityWeight    float64
	LanguageWeight   float64

	PreferredLanguage string
	HosterPreference  []string
}

func DefaultStreamRankingProfile() StreamRankingProfile {
	return StreamRankingProfile{
		TitleMatchWeight:  3,
		YearMatchWeight:   1.5,
		EpisodeWeight:     2,
		QualityWeight:     1,
		LanguageWeight:    1.5,
		PreferredLanguage: "de",
	}
}
