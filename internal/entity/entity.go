// Package entity defines the detected-PII value type, the canonical type
// vocabulary, and the merge step that reconciles candidates from several
// detectors into one list.
package entity

// Type is a canonical PII category tag.
type Type string

// Canonical entity types.
const (
	SSN         Type = "SSN"
	CreditCard  Type = "CREDIT_CARD"
	Email       Type = "EMAIL"
	Phone       Type = "PHONE"
	Address     Type = "ADDRESS"
	PersonName  Type = "PERSON_NAME"
	CompanyName Type = "COMPANY_NAME"
	Financial   Type = "FINANCIAL"
	IDNumber    Type = "ID_NUMBER"
	Location    Type = "LOCATION"
	Date        Type = "DATE"
	Time        Type = "TIME"
	URL         Type = "URL"
	IP          Type = "IP"
	Number      Type = "NUMBER"
	Quantity    Type = "QUANTITY"
	Product     Type = "PRODUCT"
)

// Entity is one detected PII value. Value is an exact substring of the text
// it was found in; no offsets are kept.
type Entity struct {
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

// Immune reports whether t is exempt from unconditional masking. Immune
// values are handled by name replacement under reasoning intent.
func (t Type) Immune() bool {
	return t == PersonName || t == CompanyName
}

// Placeholder returns the bracketed mask for t, e.g. "<EMAIL>".
func (t Type) Placeholder() string {
	return "<" + string(t) + ">"
}

// Priority lists types from most to least specific. Merge uses it to pick
// one type when detectors disagree about the same value.
var Priority = []Type{
	SSN, CreditCard, Email, Phone, Address,
	PersonName, CompanyName, Financial, IDNumber,
	Location, Date, URL, IP, Number, Quantity, Product,
}

var priorityRank = func() map[Type]int {
	m := make(map[Type]int, len(Priority))
	for i, t := range Priority {
		m[t] = i
	}
	return m
}()

// CountByType tallies entities per type.
func CountByType(es []Entity) map[Type]int {
	out := make(map[Type]int)
	for _, e := range es {
		out[e.Type]++
	}
	return out
}
