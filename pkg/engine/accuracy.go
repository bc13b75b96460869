package engine

import (
	"fmt"

	"github.com/mathshard/oddsengine/pkg/engine/poisson"
	"github.com/mathshard/oddsengine/pkg/football"
)

// Evaluation scores one prediction against the actual result.
type Evaluation struct {
	MatchID         football.MatchID `json:"match_id"`
	PredictedResult football.Result  `json:"predicted_result"`
	ActualResult    football.Result  `json:"actual_result"`
	ResultCorrect   bool             `json:"result_correct"`
	ExactScore      bool             `json:"exact_score"`
	// Brier is the multi-class Brier score over 1X2: 0 is a perfect
	// call, 2 the worst possible.
	Brier float64 `json:"brier"`
}

// AccuracySummary aggregates evaluations.
type AccuracySummary struct {
	Evaluated      int     `json:"evaluated"`
	ResultAccuracy float64 `json:"result_accuracy"`
	ExactScoreRate float64 `json:"exact_score_rate"`
	AvgBrier       float64 `json:"avg_brier"`
}

// Evaluate scores a prediction against a finished match.
func Evaluate(p *poisson.Prediction, m football.Match) (Evaluation, error) {
	if !m.Finished() {
		return Evaluation{}, fmt.Errorf("evaluating match %d: not finished", m.ID)
	}

	actual := m.FullTime.Result()
	ev := Evaluation{
		MatchID:         m.ID,
		PredictedResult: predictedResult(p),
		ActualResult:    actual,
	}
	ev.ResultCorrect = ev.PredictedResult == actual

	if len(p.TopScores) > 0 {
		ev.ExactScore = p.TopScores[0].Score == *m.FullTime
	}

	for _, o := range []struct {
		prob float64
		res  football.Result
	}{
		{p.HomeWin, football.ResultHome},
		{p.Draw, football.ResultDraw},
		{p.AwayWin, football.ResultAway},
	} {
		outcome := 0.0
		if o.res == actual {
			outcome = 1.0
		}
		d := o.prob - outcome
		ev.Brier += d * d
	}

	return ev, nil
}

// Summarize aggregates a batch of evaluations.
func Summarize(evals []Evaluation) AccuracySummary {
	var s AccuracySummary
	if len(evals) == 0 {
		return s
	}

	var correct, exact int
	var brier float64
	for _, ev := range evals {
		if ev.ResultCorrect {
			correct++
		}
		if ev.ExactScore {
			exact++
		}
		brier += ev.Brier
	}

	n := float64(len(evals))
	s.Evaluated = len(evals)
	s.ResultAccuracy = float64(correct) / n
	s.ExactScoreRate = float64(exact) / n
	s.AvgBrier = brier / n
	return s
}

// --- Internal helpers ---

func predictedResult(p *poisson.Prediction) football.Result {
	switch {
	case p.HomeWin >= p.Draw && p.HomeWin >= p.AwayWin:
		return football.ResultHome
	case p.AwayWin >= p.Draw:
		return football.ResultAway
	default:
		return football.ResultDraw
	}
}
