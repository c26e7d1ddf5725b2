// Package rating implements the Moral Rating (MR): an Elo-like scalar
// summarizing a subject's aggregate sophistication across items, with a
// decaying K-factor and per-item difficulty derived from the item's
// pressure level, dilemma type, and expert disagreement.
package rating

import (
	"math"

	"github.com/veritas-labs/mse/internal/model"
)

const (
	kInit = 32.0
	kMin  = 8.0
	eloScale = 400 / 2.302585092994046 // 400/ln(10)

	// difficultyBase/difficultySpread map pressure_level [0,1] onto a
	// difficulty band comparable to the MR scale (subjects start at 1000).
	difficultyBase   = 800.0
	difficultySpread = 400.0
	// expertDisagreementWeight (k1) scales expert_disagreement's additive
	// contribution to item difficulty: a maximally disputed item
	// (expert_disagreement = 1) gains 200 points of difficulty, half the
	// span the pressure level covers.
	expertDisagreementWeight = 200.0
)

// dilemmaTypeBonus is the additive difficulty bonus per dilemma type,
// reflecting that framing/consistency/dirty-hands/tragic dilemmas are
// harder to answer well than a base scenario.
var dilemmaTypeBonus = map[model.DilemmaType]float64{
	model.DilemmaTypeBase:            0,
	model.DilemmaTypeFraming:         20,
	model.DilemmaTypePressure:        40,
	model.DilemmaTypeConsistencyTrap: 60,
	model.DilemmaTypeParticularist:   50,
	model.DilemmaTypeDirtyHands:      80,
	model.DilemmaTypeTragic:          100,
}

// ItemDifficulty computes the per-item difficulty that an Update call
// compares the current MR against.
func ItemDifficulty(pressureLevel float64, dilemmaType model.DilemmaType, expertDisagreement float64) float64 {
	return difficultyBase + difficultySpread*pressureLevel + dilemmaTypeBonus[dilemmaType] + expertDisagreement*expertDisagreementWeight
}

// Update applies one Elo-like MR update from a single item's GRM
// category, returning the new MR and uncertainty.
func Update(mr, uncertainty float64, itemsProcessed int, itemDifficulty float64, grmCategory int) (newMR, newUncertainty float64) {
	expected := sigmoid((mr - itemDifficulty) / eloScale)
	actual := float64(grmCategory) / 4
	k := kFactor(itemsProcessed)
	newMR = mr + k*(actual-expected)
	newUncertainty = math.Max(50, uncertainty*math.Sqrt(1-1/(1+float64(itemsProcessed))))
	return newMR, newUncertainty
}

func kFactor(itemsProcessed int) float64 {
	k := kInit * math.Pow(0.95, float64(itemsProcessed))
	if k < kMin {
		return kMin
	}
	return k
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Peak returns the monotone running maximum of mr values observed for a
// subject.
func Peak(currentPeak, mr float64) float64 {
	if mr > currentPeak {
		return mr
	}
	return currentPeak
}
