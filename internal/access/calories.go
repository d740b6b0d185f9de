package access

import (
	"math"
	"strings"

	"gym-access-backend/internal/model"
)

// DefaultCalorieRates are kcal per minute by equipment category.
var DefaultCalorieRates = map[string]float64{
	model.CategoryCardio:      12,
	model.CategoryStrength:    8,
	model.CategoryFunctional:  10,
	model.CategoryFlexibility: 3,
}

// FallbackCalorieRate applies to categories missing from the table.
const FallbackCalorieRate = 5.0

// Calories estimates energy spent over elapsedSeconds at rate kcal/min.
// Any positive duration yields at least 1.
func Calories(elapsedSeconds int64, ratePerMinute float64) int {
	if elapsedSeconds <= 0 {
		return 0
	}
	c := int(math.Round(float64(elapsedSeconds) * ratePerMinute / 60))
	if c < 1 {
		return 1
	}
	return c
}

func mergeRates(overrides map[string]float64) map[string]float64 {
	rates := make(map[string]float64, len(DefaultCalorieRates)+len(overrides))
	for k, v := range DefaultCalorieRates {
		rates[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			rates[strings.ToUpper(strings.TrimSpace(k))] = v
		}
	}
	return rates
}

func (c *Coordinator) rateFor(category string) float64 {
	if r, ok := c.opts.calorieRates[strings.ToUpper(category)]; ok {
		return r
	}
	return FallbackCalorieRate
}
