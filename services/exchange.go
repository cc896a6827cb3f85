package services

import (
	"math"

	"github.com/aims-group3/aims-payment/config"
	"github.com/aims-group3/aims-payment/utils"
)

// Payments are stored in USD while VietQR reports VND, so callback amounts
// are converted before comparison. A 0.01 USD tolerance absorbs the rounding
// introduced by the conversion.
const amountToleranceUSD = 0.01

// floatSlack keeps exact-boundary comparisons from failing on float noise.
const floatSlack = 1e-9

// vndToUSD converts a VND amount to USD, rounded half-up to 2 decimals. When
// rate is unset or zero the fixed default rate is substituted; that is a
// documented fallback, not a silent error.
func vndToUSD(amountVnd float64, rate float64) float64 {
	return math.Round(rawVndToUSD(amountVnd, rate)*100) / 100
}

// rawVndToUSD is the unrounded conversion, used for tolerance checks so that
// drift beyond one cent is not rounded back into range.
func rawVndToUSD(amountVnd float64, rate float64) float64 {
	if rate <= 0 {
		utils.ErrorLogger.Printf("USD to VND rate is unset or zero, using default %.0f", config.DefaultUsdToVndRate)
		rate = config.DefaultUsdToVndRate
	}
	return amountVnd / rate
}

// amountsMatch reports whether two USD amounts agree within one cent.
func amountsMatch(a, b float64) bool {
	return math.Abs(a-b) <= amountToleranceUSD+floatSlack
}

// callbackAmountMatches compares a callback VND amount against a stored USD
// amount using the unrounded conversion.
func callbackAmountMatches(amountVnd int64, paymentUsd float64, rate float64) bool {
	return amountsMatch(rawVndToUSD(float64(amountVnd), rate), paymentUsd)
}
