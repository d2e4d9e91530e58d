// Package rating computes the paired-comparison rating adjustment applied to
// a profile after every swipe it receives. Pure functions of current ratings
// and swipe exposure; persistence stays with the caller.
package rating

import (
	"math"

	"github.com/oggyb/matchpoint/internal/db"
)

const (
	// Under-sampled profiles move faster.
	kNew         = 48
	kEstablished = 16
	// Exposure threshold between the two K-factors, in received swipes.
	exposureThreshold = 100

	// Logistic scale of the rating gap, standard paired-comparison value.
	ratingScale = 400
)

// KFactor selects the adjustment magnitude by the target's swipe exposure.
func KFactor(swipeCount uint64) int {
	if swipeCount < exposureThreshold {
		return kNew
	}
	return kEstablished
}

// Expected is the target-centric expected score for one swipe: the logistic
// function of the rating gap between actor and target.
func Expected(targetRating, actorRating int) float64 {
	gap := float64(actorRating-targetRating) / ratingScale
	return 1 / (1 + math.Pow(10, gap))
}

// Delta is the signed rating adjustment for the viewed profile (the target).
// Actual score is 1 for a right-swipe, 0 for a left-swipe.
//
// Delta = round(K × (actual − expected)). The caller applies it to the
// target's rating using the actor's rating at swipe time, and only when the
// recorded direction for the ordered pair actually changed.
func Delta(targetRating int, targetSwipes uint64, actorRating int, direction string) int {
	actual := 0.0
	if direction == db.DirectionRight {
		actual = 1.0
	}
	k := float64(KFactor(targetSwipes))
	return int(math.Round(k * (actual - Expected(targetRating, actorRating))))
}
