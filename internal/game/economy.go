package game

import (
	"math"
	"time"
)

// Kind is a tradable resource: a fruit, or money for trade stakes.
type Kind string

const (
	Apple  Kind = "apple"
	Banana Kind = "banana"
	Grape  Kind = "grape"
	Money  Kind = "money"
)

const (
	HarvestCooldown = 7200 * time.Second
	MaxTradeSlots   = 3
	MaxFarmLevel    = 4
)

// UpgradeKind selects which upgrade path a purchase applies to.
type UpgradeKind string

const (
	UpgradeSize       UpgradeKind = "size"
	UpgradeMultiplier UpgradeKind = "multiplier"
	UpgradeFarm       UpgradeKind = "farm"
)

// Fruits returns the harvestable kinds in display order.
func Fruits() []Kind {
	return []Kind{Apple, Banana, Grape}
}

func ValidFruit(k Kind) bool {
	switch k {
	case Apple, Banana, Grape:
		return true
	}
	return false
}

// ValidStakeKind reports whether k can appear in a trade request or offer.
func ValidStakeKind(k Kind) bool {
	return k == Money || ValidFruit(k)
}

// fruitPrices is the raw per-unit sale price of each fruit.
var fruitPrices = map[Kind]int64{
	Apple:  1,
	Banana: 1,
	Grape:  1,
}

func FruitPrice(k Kind) int64 {
	return fruitPrices[k]
}

// UpgradeCost returns the price of buying the next level while currently at
// level. Size and multiplier costs grow geometrically; levels start at 1.
func UpgradeCost(kind UpgradeKind, level int) int64 {
	if level < 1 {
		level = 1
	}
	switch kind {
	case UpgradeSize:
		return int64(math.Floor(10000 * math.Pow(1.25, float64(level-1))))
	case UpgradeMultiplier:
		return int64(math.Floor(1000 * math.Pow(1.5, float64(level-1))))
	}
	return 0
}

// SizeValue is the base harvest yield granted at a size level.
func SizeValue(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Floor(1000 + 1500*float64(level-1)))
}

// MultiplierValue is the factor applied to base yield at a multiplier level.
func MultiplierValue(level int) float64 {
	if level < 1 {
		level = 1
	}
	return 1 + 0.1*float64(level-1)
}

// HarvestYield is the fruit gained by one harvest at the given upgrade levels,
// truncated to a whole number of fruit.
func HarvestYield(sizeLevel, multiplierLevel int) int64 {
	return int64(float64(SizeValue(sizeLevel)) * MultiplierValue(multiplierLevel))
}

// farmUnlockCosts[n] is the price of reaching farm level n+1.
var farmUnlockCosts = [MaxFarmLevel]int64{5000, 25000, 100000, 500000}

// FarmUnlockCost returns the price of unlocking the given farm level, or 0 if
// the level is out of range.
func FarmUnlockCost(level int) int64 {
	if level < 1 || level > MaxFarmLevel {
		return 0
	}
	return farmUnlockCosts[level-1]
}

// Recipe describes one production good: the farm level that unlocks it, the
// fruit consumed per produced unit, how long refining takes, and the money
// credited per unit on completion.
type Recipe struct {
	Name          string
	FarmLevel     int
	FruitCount    int   // distinct fruits the caller must select
	UnitsPerFruit int64 // input fruit consumed per selected kind, per unit
	RefineTime    time.Duration
	SellPrice     int64
}

var recipes = []Recipe{
	{Name: "juice", FarmLevel: 1, FruitCount: 1, UnitsPerFruit: 100, RefineTime: 10 * time.Minute, SellPrice: 150},
	{Name: "fine-juice", FarmLevel: 2, FruitCount: 1, UnitsPerFruit: 100, RefineTime: 30 * time.Minute, SellPrice: 350},
	{Name: "smoothie", FarmLevel: 3, FruitCount: 3, UnitsPerFruit: 50, RefineTime: time.Hour, SellPrice: 600},
	{Name: "fine-smoothie", FarmLevel: 4, FruitCount: 3, UnitsPerFruit: 50, RefineTime: 2 * time.Hour, SellPrice: 1500},
}

// RecipeByName looks up a recipe; ok is false for unknown names.
func RecipeByName(name string) (Recipe, bool) {
	for _, r := range recipes {
		if r.Name == name {
			return r, true
		}
	}
	return Recipe{}, false
}

// RecipeForFarmLevel returns the recipe unlocked by reaching the given level.
func RecipeForFarmLevel(level int) (Recipe, bool) {
	for _, r := range recipes {
		if r.FarmLevel == level {
			return r, true
		}
	}
	return Recipe{}, false
}

func Recipes() []Recipe {
	out := make([]Recipe, len(recipes))
	copy(out, recipes)
	return out
}
