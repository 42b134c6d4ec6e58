package risk

// KellySize returns the recommended stake for a binary-outcome market.
//
// Kelly: f = (b*p - q) / b, with b the payout odds, p the win
// probability and q = 1-p. A positive edge means buying YES at price;
// a negative edge means buying NO at 1-price. The raw fraction is
// scaled by the conservative multiplier and by confidence, then applied
// to the balance. Bounds clipping is the caller's job.
func KellySize(edge, price, confidence, fraction, balance float64) float64 {
	if price <= 0 || price >= 1 {
		return 0
	}

	var winProb, odds float64
	if edge > 0 {
		winProb = price + edge
		odds = (1 - price) / price
	} else {
		winProb = 1 - (price + edge)
		odds = price / (1 - price)
	}
	if winProb > 1 {
		winProb = 1
	}
	lossProb := 1 - winProb

	if odds <= 0 {
		return 0
	}
	kelly := (odds*winProb - lossProb) / odds
	if kelly < 0 {
		kelly = 0
	}

	return kelly * fraction * confidence * balance
}
