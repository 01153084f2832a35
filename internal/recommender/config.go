package recommender

// Config collects every weight and threshold the engine uses. All tuning
// lives here rather than scattered through the strategies so each knob can
// be adjusted and tested independently.
type Config struct {
	// Preference aggregation (genre profile)
	StatedLikeWeight   float64 // contribution of one stated onboarding like
	ThumbsUpWeight     float64 // contribution per thumbs-up in a genre
	RatingCountWeight  float64 // multiplier on sqrt(ratings in genre)
	RatingCountCap     float64 // upper bound on the dampened rating term
	PreferredThreshold float64 // minimum score for a genre to count as preferred
	TopGenreCount      int     // how many top genres feed content queries

	// Cold start
	ColdStartThreshold int     // interactions below this use the fallback chain
	GenreOverlapWeight float64 // cold-start stated-preference scoring
	VoteAverageWeight  float64
	PopularityWeight   float64 // multiplier on the raw catalog popularity score
	AgeBracketWindow   int     // cohort: matching brackets within +/- this many years

	// Collaborative models
	MinRatingsForModel   int // system-wide ratings needed to factorize
	LatentFactors        int // rank of the factorization
	LatentEpochs         int
	LatentLearningRate   float64
	LatentRegularization float64
	MinCoRatings         int // item pairs need this many common raters
	MaxMatrixCells       int // sample down instead of factorizing beyond this

	// Implicit signal strengths (original rating scale)
	FavoriteImplicitRating  float64
	WatchlistImplicitRating float64
	HighRatingFloor         float64 // ratings at/above this count as "liked"
	LowRatingCeiling        float64 // ratings at/below this exclude the movie

	// Embedding similarity
	DiversityWeight   float64 // default diversity re-rank parameter [0,1]
	CandidateMultiple int     // over-fetch factor before filtering

	// Incremental updates
	UpdateThreshold int // new ratings per automatic warm-start rebuild

	// Hybrid composition: interleave weights per algorithm tag
	SourceWeights map[string]int
}

// DefaultConfig returns the documented production defaults
func DefaultConfig() Config {
	return Config{
		StatedLikeWeight:   5.0,
		ThumbsUpWeight:     3.0,
		RatingCountWeight:  0.5,
		RatingCountCap:     5.0,
		PreferredThreshold: 0.2,
		TopGenreCount:      5,

		ColdStartThreshold: 3,
		GenreOverlapWeight: 5.0,
		VoteAverageWeight:  2.0,
		PopularityWeight:   0.01,
		AgeBracketWindow:   10,

		MinRatingsForModel:   20,
		LatentFactors:        16,
		LatentEpochs:         30,
		LatentLearningRate:   0.01,
		LatentRegularization: 0.05,
		MinCoRatings:         2,
		MaxMatrixCells:       4_000_000,

		FavoriteImplicitRating:  4.5,
		WatchlistImplicitRating: 3.5,
		HighRatingFloor:         4.0,
		LowRatingCeiling:        2.0,

		DiversityWeight:   0.2,
		CandidateMultiple: 3,

		UpdateThreshold: 50,

		SourceWeights: map[string]int{
			"latent_factor":    3,
			"item_cf":          3,
			"embedding":        2,
			"genre_preference": 2,
			"demographic":      1,
			"popularity":       1,
		},
	}
}
