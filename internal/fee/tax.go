package fee

// IncludedTax extracts the tax portion of a tax-inclusive amount:
// tax = amount - amount/(1+rate), rounded half-up to a minor unit.
// A zero or negative rate yields zero tax.
func IncludedTax(amount int64, rateBps int32) int64 {
	if rateBps <= 0 || amount == 0 {
		return 0
	}
	return roundedShare(amount, int64(rateBps), 10_000+int64(rateBps))
}
