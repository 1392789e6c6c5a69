package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/utakatalp/rank-stability/internal/league"
)

// PowerLaw models ranking distance as a function of the round number:
// distance(round) = B * round^A.
type PowerLaw struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Distance evaluates the law at one round.
func (p PowerLaw) Distance(round float64) float64 {
	return p.B * math.Pow(round, p.A)
}

// Distances evaluates the law for every round in [initRound, endRound].
func (p PowerLaw) Distances(initRound, endRound int) []float64 {
	if endRound < initRound {
		return nil
	}
	out := make([]float64, 0, endRound-initRound+1)
	for r := initRound; r <= endRound; r++ {
		out = append(out, p.Distance(float64(r)))
	}
	return out
}

// Area integrates the fitted curve over [initRound, endRound] with the
// trapezoidal rule at integer rounds.
func (p PowerLaw) Area(initRound, endRound int) (float64, error) {
	return AreaUnderCurve(p.Distances(initRound, endRound), initRound)
}

// Fit is the result of a least-squares power-law fit.
type Fit struct {
	Law PowerLaw `json:"law"`
	// Covariance of (A, B), estimated as s²(JᵀJ)⁻¹ at the optimum. Entries are
	// +Inf when there are no residual degrees of freedom.
	Covariance [2][2]float64 `json:"-"`
	// SSR is the residual sum of squares.
	SSR float64 `json:"ssr"`
}

// FitPowerLaw fits distance = B * round^A by nonlinear least squares.
//
// The search starts from the log-log linear regression of the positive points,
// or from A = B = 1 when fewer than two points are positive.
func FitPowerLaw(rounds, distances []float64) (Fit, error) {
	if len(rounds) != len(distances) {
		return Fit{}, fmt.Errorf("fit power law: %d rounds vs %d distances: %w", len(rounds), len(distances), ErrLengthMismatch)
	}
	if len(rounds) < 2 {
		return Fit{}, fmt.Errorf("fit power law: %d points: %w", len(rounds), ErrInsufficientData)
	}

	ssr := func(x []float64) float64 {
		law := PowerLaw{A: x[0], B: x[1]}
		var sum float64
		for i, r := range rounds {
			d := law.Distance(r) - distances[i]
			sum += d * d
		}
		return sum
	}

	res, err := optimize.Minimize(
		optimize.Problem{Func: ssr},
		initialGuess(rounds, distances),
		&optimize.Settings{
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-14,
				Relative:   1e-12,
				Iterations: 200,
			},
			MajorIterations: 20000,
		},
		&optimize.NelderMead{},
	)
	if err != nil {
		return Fit{}, fmt.Errorf("fit power law: %w", err)
	}

	law := PowerLaw{A: res.X[0], B: res.X[1]}
	fit := Fit{Law: law, SSR: ssr(res.X)}
	fit.Covariance = covariance(law, rounds, fit.SSR)
	return fit, nil
}

func initialGuess(rounds, distances []float64) []float64 {
	var logX, logY []float64
	for i, r := range rounds {
		if r > 0 && distances[i] > 0 {
			logX = append(logX, math.Log(r))
			logY = append(logY, math.Log(distances[i]))
		}
	}
	if len(logX) < 2 {
		return []float64{1, 1}
	}
	alpha, beta := stat.LinearRegression(logX, logY, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return []float64{1, 1}
	}
	return []float64{beta, math.Exp(alpha)}
}

func covariance(law PowerLaw, rounds []float64, ssr float64) [2][2]float64 {
	inf := math.Inf(1)
	unknown := [2][2]float64{{inf, inf}, {inf, inf}}

	dof := len(rounds) - 2
	if dof <= 0 {
		return unknown
	}

	jac := mat.NewDense(len(rounds), 2, nil)
	for i, r := range rounds {
		pow := math.Pow(r, law.A)
		jac.Set(i, 0, law.B*pow*math.Log(r))
		jac.Set(i, 1, pow)
	}

	var jtj, inv mat.Dense
	jtj.Mul(jac.T(), jac)
	if err := inv.Inverse(&jtj); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return unknown
		}
	}
	inv.Scale(ssr/float64(dof), &inv)

	return [2][2]float64{
		{inv.At(0, 0), inv.At(0, 1)},
		{inv.At(1, 0), inv.At(1, 1)},
	}
}

// RSquared returns 1 - SS_res/SS_tot of the law against observed distances for
// rounds initRound, initRound+1, ...
//
// SS_tot is taken around the mean of the predicted curve, not the observed one,
// which is not the textbook R². SS_tot == 0 yields NaN or -Inf.
func RSquared(law PowerLaw, observed []float64, initRound int) float64 {
	predicted := law.Distances(initRound, initRound+len(observed)-1)
	mean := stat.Mean(predicted, nil)

	var ssRes, ssTot float64
	for i, y := range observed {
		res := y - predicted[i]
		ssRes += res * res
		dev := y - mean
		ssTot += dev * dev
	}
	return 1 - ssRes/ssTot
}

// AreaUnderCurve integrates a distance series sampled at rounds initRound,
// initRound+1, ... with the trapezoidal rule.
func AreaUnderCurve(distances []float64, initRound int) (float64, error) {
	if len(distances) < 2 {
		return 0, fmt.Errorf("area under curve: %d points: %w", len(distances), ErrInsufficientData)
	}
	rounds := make([]float64, len(distances))
	for i := range rounds {
		rounds[i] = float64(initRound + i)
	}
	return integrate.Trapezoidal(rounds, distances), nil
}

// RoundRange returns the rounds initRound..initRound+n-1 as floats.
func RoundRange(initRound, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(initRound + i)
	}
	return out
}

// WindowFit is a power-law fit over a window of a per-round curve.
type WindowFit struct {
	Fit
	From         int
	To           int
	RSquared     float64
	ObservedArea float64
	FittedArea   float64
	Observed     []float64
	Fitted       []float64
}

// FitWindow fits the curve values for rounds from..to inclusive, where
// curve[i] is the value at round i+1.
func FitWindow(curve []float64, from, to int) (WindowFit, error) {
	if from < 1 || to > len(curve) || from > to {
		return WindowFit{}, fmt.Errorf("fit window %d-%d of %d rounds: %w", from, to, len(curve), league.ErrRoundOutOfRange)
	}

	observed := curve[from-1 : to]
	fit, err := FitPowerLaw(RoundRange(from, len(observed)), observed)
	if err != nil {
		return WindowFit{}, err
	}
	obsArea, err := AreaUnderCurve(observed, from)
	if err != nil {
		return WindowFit{}, err
	}
	fitArea, err := fit.Law.Area(from, to)
	if err != nil {
		return WindowFit{}, err
	}

	return WindowFit{
		Fit:          fit,
		From:         from,
		To:           to,
		RSquared:     RSquared(fit.Law, observed, from),
		ObservedArea: obsArea,
		FittedArea:   fitArea,
		Observed:     append([]float64(nil), observed...),
		Fitted:       fit.Law.Distances(from, to),
	}, nil
}
