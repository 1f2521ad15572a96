package tui

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/shopspring/decimal"

	"github.com/FeelPulse/haven/pkg/types"
)

// Shown in place of fields the backend left out
const (
	placeholderTitle       = "Elite Property"
	placeholderLocation    = "Location on Request"
	placeholderPrice       = "Price on Request"
	placeholderDetailPrice = "Price upon request"
	placeholderDescription = "No detailed description available for this elite listing. Contact concierge for a private showing."
)

const cardDescriptionWidth = 120

func listingTitle(l types.Listing) string {
	if t := strings.TrimSpace(l.Title); t != "" {
		return t
	}
	return placeholderTitle
}

func listingLocation(l types.Listing) string {
	if loc := strings.TrimSpace(l.Location); loc != "" {
		return loc
	}
	return placeholderLocation
}

// listingPrice formats the price; absent falls back to placeholder, zero is shown as $0
func listingPrice(l types.Listing, placeholder string) string {
	if l.Price == nil {
		return placeholder
	}
	return formatAmount(*l.Price)
}

func listingDescription(l types.Listing) string {
	if d := htmlToText(l.Description); d != "" {
		return d
	}
	return placeholderDescription
}

// listingConfiguration returns e.g. "3 BHK", or "" when unknown
func listingConfiguration(l types.Listing) string {
	if l.Configuration == nil {
		return ""
	}
	return decimal.NewFromFloat(*l.Configuration).String() + " BHK"
}

// formatAmount renders a price with thousands separators: $35,000,000 or $1,250.50
func formatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	var s string
	if d.IsInteger() {
		s = d.StringFixed(0)
	} else {
		s = d.StringFixed(2)
	}

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString("." + frac)
	}
	return sign + "$" + b.String()
}

// htmlToText flattens descriptions that arrive as HTML fragments and
// collapses whitespace. Plain text passes through unchanged apart from spacing.
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style").Remove()
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// renderListingCard is the compact form shown under an agent message
func renderListingCard(n int, l types.Listing, width int) string {
	if width < 30 {
		width = 30
	}
	inner := width - 4

	title := cardTitleStyle.Render(truncate.StringWithTail(fmt.Sprintf("%d. %s", n, listingTitle(l)), uint(inner), "…"))

	meta := []string{"⌖ " + listingLocation(l)}
	if cfg := listingConfiguration(l); cfg != "" {
		meta = append(meta, cfg)
	}
	if l.Action != "" {
		meta = append(meta, badgeStyle.Render(strings.ToUpper(string(l.Action))))
	}

	desc := truncate.StringWithTail(listingDescription(l), cardDescriptionWidth, "…")

	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		wordwrap.String(strings.Join(meta, "  "), inner),
		cardPriceStyle.Render(listingPrice(l, placeholderPrice)),
		helpStyle.Render(wordwrap.String(desc, inner)),
	)
	return cardStyle.Width(width - 2).Render(body)
}

// renderListingDetail is the full view opened with /view
func renderListingDetail(n int, l types.Listing, width int) string {
	if width < 40 {
		width = 40
	}
	inner := width - 8

	var b strings.Builder
	if l.Action != "" {
		b.WriteString(badgeStyle.Render(strings.ToUpper(string(l.Action))))
		b.WriteString("\n")
	}
	b.WriteString(cardTitleStyle.Render(wordwrap.String(fmt.Sprintf("#%d  %s", n, listingTitle(l)), inner)))
	b.WriteString("\n\n")

	cfg := listingConfiguration(l)
	if cfg == "" {
		cfg = "—"
	}
	rows := [][2]string{
		{"PRICE", listingPrice(l, placeholderDetailPrice)},
		{"CONFIGURATION", cfg},
		{"LOCATION", listingLocation(l)},
	}
	for _, row := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-14s", row[0])))
		b.WriteString(row[1])
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("DESCRIPTION"))
	b.WriteString("\n")
	b.WriteString(wordwrap.String(listingDescription(l), inner))

	if l.Image != "" {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("IMAGE "))
		b.WriteString(l.Image)
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("Esc to return to the chat"))

	return detailStyle.Width(width - 2).Render(b.String())
}
