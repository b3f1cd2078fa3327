package tactics

import "math"

// clamp01 clamps x to the closed interval [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// HitProbability returns the chance of a single attack hitting, given the
// attacker's skill (WS or BS, possibly overridden). p = (7 - skill) / 6.
func HitProbability(skill int) float64 {
	return clamp01(float64(7-skill) / 6.0)
}

// WoundProbability implements the strength-vs-toughness step function.
// Tolerates T == 0 by returning 0 rather than dividing by zero.
func WoundProbability(strength, toughness int) float64 {
	if toughness <= 0 {
		return 0
	}
	s, t := strength, toughness
	switch {
	case s >= 2*t:
		return 5.0 / 6.0
	case s > t:
		return 4.0 / 6.0
	case s == t:
		return 3.0 / 6.0
	case 2*s > t:
		return 2.0 / 6.0
	default:
		return 1.0 / 6.0
	}
}

// ArmorSaveProbability returns the chance an armor save of Sv succeeds
// against AP, clamped to [0, 1]. Each point of AP worsens the save by one.
func ArmorSaveProbability(sv, ap int) float64 {
	return clamp01(float64(7-sv-ap) / 6.0)
}

// InvulnSaveProbability returns the chance an invulnerable save succeeds,
// clamped to [0, 1].
func InvulnSaveProbability(inv int) float64 {
	return clamp01(float64(7-inv) / 6.0)
}

// SaveFailureProbability returns 1 minus the better of the armor or
// invulnerable save, never negative.
func SaveFailureProbability(sv, ap, inv int) float64 {
	best := math.Max(ArmorSaveProbability(sv, ap), InvulnSaveProbability(inv))
	return clamp01(1 - best)
}

// PenetratingHitProbability collapses the hit/wound/save-failure chain
// into a single Bernoulli trial success probability.
func PenetratingHitProbability(skill, strength, toughness, sv, ap, inv int) float64 {
	return HitProbability(skill) * WoundProbability(strength, toughness) * SaveFailureProbability(sv, ap, inv)
}

// logFactorial returns log(n!) via math.Lgamma, with no caching, so
// binomial weights stay numerically stable for n in the hundreds (a
// 20-model unit firing 10 shots each, doubled by rapid fire, gives 400).
func logFactorial(n int) float64 {
	v, _ := math.Lgamma(float64(n) + 1)
	return v
}

// logBinomialCoefficient returns log(C(n, k)).
func logBinomialCoefficient(n, k int) float64 {
	return logFactorial(n) - logFactorial(k) - logFactorial(n-k)
}

// BinomialPMF returns P[X = k] for X ~ Binomial(n, p), computed from log
// factorials for numerical stability. Returns 0 for k outside [0, n].
func BinomialPMF(n int, p float64, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	p = clamp01(p)
	if p == 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	if p == 1 {
		if k == n {
			return 1
		}
		return 0
	}
	logP := logBinomialCoefficient(n, k) + float64(k)*math.Log(p) + float64(n-k)*math.Log(1-p)
	return math.Exp(logP)
}

// BinomialDistribution returns the full PMF for X ~ Binomial(n, p) as a
// slice of length n+1 indexed by k.
func BinomialDistribution(n int, p float64) []float64 {
	out := make([]float64, n+1)
	for k := 0; k <= n; k++ {
		out[k] = BinomialPMF(n, p, k)
	}
	return out
}

// ChargeMinDistance and ChargeMaxDistance bound the possible 2d6 sums.
const (
	ChargeMinDistance = 2
	ChargeMaxDistance = 12
)

// ChargeDistancePMF returns P[2d6 = d] for d in [2, 12], and 0 otherwise.
func ChargeDistancePMF(d int) float64 {
	if d < ChargeMinDistance || d > ChargeMaxDistance {
		return 0
	}
	return float64(6-abs(7-d)) / 36.0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ChargePassProbability returns the probability that a 2d6 roll is at
// least ceil(distance), per spec §4.B.
func ChargePassProbability(distance float64) float64 {
	threshold := int(math.Ceil(distance))
	sum := 0.0
	for d := threshold; d <= ChargeMaxDistance; d++ {
		sum += ChargeDistancePMF(d)
	}
	return clamp01(sum)
}

// MoraleMinRollForLoss returns Ld - loss + 1: the lowest single-die roll
// that removes further models. Lower rolls remove none; a result of 7 or
// more means no roll removes models, and a result of 1 or less means every
// roll does.
func MoraleMinRollForLoss(ld, loss int) int {
	return ld - loss + 1
}
