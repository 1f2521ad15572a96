package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Action is what the listing is offered for
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionRent Action = "Rent"
	ActionSell Action = "Sell"
)

// ParseAction matches s case-insensitively against the known actions
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return ActionBuy, nil
	case "rent":
		return ActionRent, nil
	case "sell":
		return ActionSell, nil
	}
	return "", fmt.Errorf("unknown listing action %q", s)
}

// UnmarshalJSON accepts any casing of Buy, Rent or Sell. An empty string leaves the action unset.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("listing action: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*a = ""
		return nil
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Listing is a property record attached to an agent message.
// Empty strings and nil pointers mean the backend did not supply the field.
type Listing struct {
	ID            string           `json:"_id"`
	Title         string           `json:"title,omitempty"`
	Location      string           `json:"location,omitempty"`
	Description   string           `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Configuration *float64         `json:"bhk,omitempty"`
	Action        Action           `json:"action,omitempty"`
	Image         string           `json:"image,omitempty"`
}

// listingWire is the loose shape listings arrive in. Older backend builds
// used address/city and rent/rent_amount/price_amount.
type listingWire struct {
	ID          json.RawMessage `json:"_id"`
	AltID       json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Location    string          `json:"location"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
	Rent        json.RawMessage `json:"rent"`
	RentAmount  json.RawMessage `json:"rent_amount"`
	PriceAmount json.RawMessage `json:"price_amount"`
	BHK         *float64        `json:"bhk"`
	Action      Action          `json:"action"`
	Image       string          `json:"image"`
}

// UnmarshalJSON decodes a backend listing, folding legacy field names into the current ones
func (l *Listing) UnmarshalJSON(data []byte) error {
	var w listingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id := rawID(w.ID)
	if id == "" {
		id = rawID(w.AltID)
	}

	location := w.Location
	if location == "" {
		location = w.Address
	}
	if location == "" {
		location = w.City
	}

	var price *decimal.Decimal
	for _, raw := range []json.RawMessage{w.Price, w.Rent, w.RentAmount, w.PriceAmount} {
		if price = rawAmount(raw); price != nil {
			break
		}
	}

	*l = Listing{
		ID:            id,
		Title:         w.Title,
		Location:      location,
		Description:   w.Description,
		Price:         price,
		Configuration: w.BHK,
		Action:        w.Action,
		Image:         w.Image,
	}
	return nil
}

// rawID turns a string or numeric JSON id into a string
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawAmount reads a JSON number or numeric string. Anything else is treated as absent.
func rawAmount(raw json.RawMessage) *decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return nil
	}
	return &d
}

// Clone returns a copy of l that shares no pointers with it
func (l Listing) Clone() Listing {
	if l.Price != nil {
		p := l.Price.Copy()
		l.Price = &p
	}
	if l.Configuration != nil {
		c := *l.Configuration
		l.Configuration = &c
	}
	return l
}

// CloneListings deep-copies ls. nil stays nil.
func CloneListings(ls []Listing) []Listing {
	if ls == nil {
		return nil
	}
	out := make([]Listing, len(ls))
	for i, l := range ls {
		out[i] = l.Clone()
	}
	return out
}
