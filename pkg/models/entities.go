package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MonthYear is a calendar month mentioned in a question.
type MonthYear struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// ClientID is a client identifier that is either numeric or free text.
// Exactly one of Int or Text is set.
type ClientID struct {
	Int  *int
	Text *string
}

// NewIntClient returns a numeric ClientID.
func NewIntClient(v int) *ClientID {
	return &ClientID{Int: &v}
}

// NewTextClient returns a textual ClientID.
func NewTextClient(v string) *ClientID {
	return &ClientID{Text: &v}
}

// Value returns the bindable query value.
func (c *ClientID) Value() any {
	if c == nil {
		return nil
	}
	if c.Int != nil {
		return *c.Int
	}
	if c.Text != nil {
		return *c.Text
	}
	return nil
}

// String renders the identifier the way it was written.
func (c *ClientID) String() string {
	if c == nil {
		return ""
	}
	if c.Int != nil {
		return strconv.Itoa(*c.Int)
	}
	if c.Text != nil {
		return *c.Text
	}
	return ""
}

// MarshalJSON encodes the client as a JSON number or string.
func (c ClientID) MarshalJSON() ([]byte, error) {
	if c.Int != nil {
		return json.Marshal(*c.Int)
	}
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts either a JSON number or string.
func (c *ClientID) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Int, c.Text = &n, nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("client must be a number or a string: %w", err)
	}
	c.Int, c.Text = nil, &s
	return nil
}

// EntityBag holds the structured values extracted from free text.
// A nil or empty field means the value was not mentioned.
type EntityBag struct {
	SKU    *string     `json:"sku,omitempty"`
	SKUs   []string    `json:"skus,omitempty"`
	Months []MonthYear `json:"months,omitempty"`
	Years  []int       `json:"years,omitempty"`
	N      *int        `json:"n,omitempty"`
	Client *ClientID   `json:"client,omitempty"`
}

// PeriodType selects the forecast window for prediction intents.
type PeriodType string

const (
	PeriodNextMonth PeriodType = "next_month"
	PeriodMonth     PeriodType = "month"
	PeriodYear      PeriodType = "year"
)

// Period is the forecast window requested by the user.
type Period struct {
	Type  PeriodType `json:"type"`
	Month int        `json:"month,omitempty"`
	Year  int        `json:"year,omitempty"`
}

// Horizon returns the number of days to forecast for the period.
// Month-sized windows project 30 days; a year projects 365.
func (p *Period) Horizon() int {
	if p != nil && p.Type == PeriodYear {
		return 365
	}
	return 30
}

// PeriodBound is one side of a date range. Month is zero for year-only bounds.
type PeriodBound struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year"`
}

// HasMonth reports whether the bound is month-precise.
func (b *PeriodBound) HasMonth() bool {
	return b != nil && b.Month >= 1 && b.Month <= 12
}

// Params are the per-intent parameters derived from an EntityBag.
type Params struct {
	SKU          *string      `json:"sku,omitempty"`
	SKUs         []string     `json:"skus,omitempty"`
	Months       []MonthYear  `json:"months,omitempty"`
	Years        []int        `json:"years,omitempty"`
	N            *int         `json:"n,omitempty"`
	Client       *ClientID    `json:"client,omitempty"`
	Start        *PeriodBound `json:"start,omitempty"`
	End          *PeriodBound `json:"end,omitempty"`
	Period       *Period      `json:"period,omitempty"`
	OriginalText string       `json:"original_text,omitempty"`
}

// IsEmpty reports whether no parameter is set.
func (p Params) IsEmpty() bool {
	return p.SKU == nil && len(p.SKUs) == 0 && len(p.Months) == 0 && len(p.Years) == 0 &&
		p.N == nil && p.Client == nil && p.Start == nil && p.End == nil &&
		p.Period == nil && p.OriginalText == ""
}

// SKUValue returns the SKU or an empty string.
func (p Params) SKUValue() string {
	if p.SKU == nil {
		return ""
	}
	return *p.SKU
}
