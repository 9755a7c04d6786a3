package transport

import (
	"fmt"
	"strings"

	"base-launch-radar/internal/domain"
)

// badge renders a boolean safety property as a green/red marker.
func badge(ok bool, label string) string {
	if ok {
		return "✅ " + label
	}
	return "❌ " + label
}

// shortID derives the project id embedded in button payloads.
func shortID(alertID string) string {
	if len(alertID) > 8 {
		return alertID[:8]
	}
	return alertID
}

// FormatAlert renders an alert as an HTML chat message plus its inline
// keyboard.
func FormatAlert(a *domain.Alert) (string, []Button) {
	var b strings.Builder

	name := a.Meta.Name
	if name == "" {
		name = a.Meta.Symbol
	}
	fmt.Fprintf(&b, "<b>%s</b> ($%s)\n", name, a.Meta.Symbol)
	fmt.Fprintf(&b, "<code>%s</code>\n\n", a.Meta.Address.Hex())

	fmt.Fprintf(&b, "Score: <b>%d</b> (%s)\n", a.Score.Overall, a.Score.Risk)
	fmt.Fprintf(&b, "Security %d | Viral %d | Social %d\n\n", a.Score.Security, a.Score.Viral, a.Score.Social)

	b.WriteString(badge(a.Meta.Renounced, "Renounced") + "\n")
	b.WriteString(badge(!a.Safety.IsHoneypot, "Sellable") + "\n")
	lock := "LP locked"
	if a.Safety.LPLocked && a.Safety.LPLockDays > 0 {
		lock = fmt.Sprintf("LP locked %dd (%s)", a.Safety.LPLockDays, a.Safety.LockerLabel)
	} else if a.Safety.LPLocked && a.Safety.LockerLabel != "" {
		lock = fmt.Sprintf("LP locked (%s)", a.Safety.LockerLabel)
	}
	b.WriteString(badge(a.Safety.LPLocked, lock) + "\n")
	b.WriteString(badge(a.Safety.BuyTaxPct <= 10 && a.Safety.SellTaxPct <= 10,
		fmt.Sprintf("Tax %.1f%%/%.1f%%", a.Safety.BuyTaxPct, a.Safety.SellTaxPct)) + "\n\n")

	fmt.Fprintf(&b, "Holders: %d | Top: %.1f%%\n", a.OnChain.HolderCount, a.OnChain.TopHolderPct)
	fmt.Fprintf(&b, "Bundles: %d | Snipers: %d\n", a.OnChain.BundleCount, a.OnChain.SniperCount)
	if a.Market.LiquidityUSD > 0 {
		fmt.Fprintf(&b, "Liq: $%.0f | Vol 24h: $%.0f\n", a.Market.LiquidityUSD, a.Market.Volume24hUSD)
	}
	fmt.Fprintf(&b, "\nPair: <code>%s</code>", a.Pair.PairAddress.Hex())

	buttons := []Button{{
		Label:   "BUY",
		Payload: BuyPayload(a.Meta.Address, shortID(a.AlertID)),
	}}
	return b.String(), buttons
}
