package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is the sizing of an item. Each category has exactly one variant and
// every item carries exactly one size whose Category matches the item's.
type Size interface {
	Category() Category
	// Columns returns the size attributes in CSV column order.
	Columns() []string
	isSize()
}

// ShirtSize sizes shirts ("M", "XL", "16/34").
type ShirtSize struct {
	Value string `json:"size"`
}

// ShoeSize sizes shoes ("9.5").
type ShoeSize struct {
	Value string `json:"size"`
}

// PantSize sizes pants by waist and inseam length.
type PantSize struct {
	Waist  int `json:"waist"`
	Length int `json:"length"`
}

// SuitSize sizes suits by chest and sleeve.
type SuitSize struct {
	Chest  int `json:"chest"`
	Sleeve int `json:"sleeve"`
}

func (ShirtSize) Category() Category { return CategoryShirt }
func (ShoeSize) Category() Category  { return CategoryShoe }
func (PantSize) Category() Category  { return CategoryPant }
func (SuitSize) Category() Category  { return CategorySuit }

func (s ShirtSize) Columns() []string { return []string{s.Value} }
func (s ShoeSize) Columns() []string  { return []string{s.Value} }
func (s PantSize) Columns() []string {
	return []string{strconv.Itoa(s.Waist), strconv.Itoa(s.Length)}
}
func (s SuitSize) Columns() []string {
	return []string{strconv.Itoa(s.Chest), strconv.Itoa(s.Sleeve)}
}

func (ShirtSize) isSize() {}
func (ShoeSize) isSize()  {}
func (PantSize) isSize()  {}
func (SuitSize) isSize()  {}

// SizeColumns returns the CSV header names of a category's size columns.
func SizeColumns(c Category) []string {
	switch c {
	case CategoryShirt, CategoryShoe:
		return []string{"size"}
	case CategoryPant:
		return []string{"waist", "length"}
	case CategorySuit:
		return []string{"chest", "sleeve"}
	}
	return nil
}

// ParseSize builds the size variant of category c from its CSV columns.
func ParseSize(c Category, cols []string) (Size, error) {
	want := len(SizeColumns(c))
	if want == 0 {
		return nil, fmt.Errorf("unknown item category %q", c)
	}
	if len(cols) < want {
		return nil, fmt.Errorf("%s needs %d size column(s), got %d", c, want, len(cols))
	}

	switch c {
	case CategoryShirt, CategoryShoe:
		v := strings.TrimSpace(cols[0])
		if v == "" {
			return nil, fmt.Errorf("size is required")
		}
		if c == CategoryShirt {
			return ShirtSize{Value: v}, nil
		}
		return ShoeSize{Value: v}, nil
	}

	a, err := parseMeasure(SizeColumns(c)[0], cols[0])
	if err != nil {
		return nil, err
	}
	b, err := parseMeasure(SizeColumns(c)[1], cols[1])
	if err != nil {
		return nil, err
	}
	if c == CategoryPant {
		return PantSize{Waist: a, Length: b}, nil
	}
	return SuitSize{Chest: a, Sleeve: b}, nil
}

func parseMeasure(name, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive whole number, got %q", name, raw)
	}
	return v, nil
}

// SizeInput is the flat request shape of a size. Only the fields of the
// item's category are read.
type SizeInput struct {
	Size   string `json:"size"`
	Waist  int    `json:"waist"`
	Length int    `json:"length"`
	Chest  int    `json:"chest"`
	Sleeve int    `json:"sleeve"`
}

// ToSize converts the input into the variant for category c.
func (in SizeInput) ToSize(c Category) (Size, error) {
	switch c {
	case CategoryShirt, CategoryShoe:
		return ParseSize(c, []string{in.Size})
	case CategoryPant:
		return ParseSize(c, []string{strconv.Itoa(in.Waist), strconv.Itoa(in.Length)})
	case CategorySuit:
		return ParseSize(c, []string{strconv.Itoa(in.Chest), strconv.Itoa(in.Sleeve)})
	}
	return nil, fmt.Errorf("unknown item category %q", c)
}

// IsZero reports whether no size field was supplied.
func (in SizeInput) IsZero() bool {
	return in == SizeInput{}
}
