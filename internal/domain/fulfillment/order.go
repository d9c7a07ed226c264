package fulfillment

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldNamespace is the metafield namespace under which this service stores
// all of its order-level state. Tags and fields in this namespace are the only
// durable record of past invoicing/shipping actions.
const FieldNamespace = "orderbridge"

// Order represents a commerce-platform order as read through the StateStore.
// Orders are owned by the platform; this service reads them and writes back
// tags and namespaced fields, never creates them.
type Order struct {
	// ID is the platform order identifier
	ID string
	// Name is the human-facing order number (e.g. "#1042")
	Name string
	// Email is the buyer's email address
	Email string
	// FinancialStatus is the platform payment status (e.g. "paid")
	FinancialStatus string
	// Currency is the 3-letter order currency
	Currency string
	// TotalPrice is the total amount paid by the buyer
	TotalPrice decimal.Decimal
	// ShippingPrice is the shipping fee charged to the buyer
	ShippingPrice decimal.Decimal
	// Tags is the order tag set (comma-joined string on the wire)
	Tags TagSet
	// Fields holds the namespaced key/value fields attached to the order
	Fields []Field
	// LineItems contains the order lines
	LineItems []LineItem
	// ShippingAddress is the delivery address
	ShippingAddress *Address
	// BillingAddress is the invoicing address
	BillingAddress *Address
	// Fulfillments contains the fulfillment records created so far
	Fulfillments []Fulfillment
	// CreatedAt is when the order was created on the platform
	CreatedAt time.Time
}

// Field is a namespaced key/value pair attached to an order
type Field struct {
	Namespace string
	Key       string
	Value     string
}

// LineItem represents an order line
type LineItem struct {
	// ID is the platform line item identifier
	ID string
	// SKU is the merchant SKU code
	SKU string
	// Title is the product title
	Title string
	// Quantity is the ordered quantity
	Quantity int
	// Price is the unit price
	Price decimal.Decimal
	// RequiresShipping indicates whether the line needs physical delivery
	RequiresShipping bool
}

// Address holds the address components used for invoicing and delivery
type Address struct {
	FirstName string
	LastName  string
	Company   string
	// FiscalCode is the buyer company's tax identifier, when provided
	FiscalCode string
	Address1   string
	Address2   string
	City       string
	// Province is the administrative region (county) name as free text
	Province    string
	Zip         string
	Country     string
	CountryCode string
	Phone       string
}

// FullName returns the recipient name composed from its parts
func (a *Address) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Fulfillment represents a fulfillment record on the order
type Fulfillment struct {
	// ID is the platform fulfillment identifier
	ID string
	// Status is the fulfillment status (e.g. "success", "cancelled")
	Status string
	// TrackingNumber is the courier tracking reference, if any
	TrackingNumber string
	// TrackingURL is the courier tracking page, if any
	TrackingURL string
}

// Field returns the value of the named field in the service namespace and
// whether it was present
func (o *Order) Field(key string) (string, bool) {
	for _, f := range o.Fields {
		if f.Namespace == FieldNamespace && f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// SetField adds or replaces a field in the service namespace
func (o *Order) SetField(key, value string) {
	for i, f := range o.Fields {
		if f.Namespace == FieldNamespace && f.Key == key {
			o.Fields[i].Value = value
			return
		}
	}
	o.Fields = append(o.Fields, Field{Namespace: FieldNamespace, Key: key, Value: value})
}

// ---------------------------------------------------------------------------
// TagSet
// ---------------------------------------------------------------------------

// TagSet is an unordered set of order tags. On the wire the platform
// represents it as a single comma-joined string; parsing and joining are the
// only places that format is allowed to appear.
type TagSet map[string]struct{}

// ParseTags parses the comma-joined wire representation into a TagSet.
// Surrounding whitespace is stripped and empty entries are dropped.
func ParseTags(wire string) TagSet {
	set := make(TagSet)
	for _, raw := range strings.Split(wire, ",") {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		set[tag] = struct{}{}
	}
	return set
}

// NewTagSet builds a TagSet from individual tags
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// Has reports whether the tag is present
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Add inserts a tag, deduplicating
func (s TagSet) Add(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	s[tag] = struct{}{}
}

// Remove deletes a tag if present
func (s TagSet) Remove(tag string) {
	delete(s, tag)
}

// RemoveFunc deletes every tag for which keep returns true
func (s TagSet) RemoveFunc(match func(tag string) bool) {
	for tag := range s {
		if match(tag) {
			delete(s, tag)
		}
	}
}

// Clone returns an independent copy of the set
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	for tag := range s {
		out[tag] = struct{}{}
	}
	return out
}

// List returns the tags sorted for stable output
func (s TagSet) List() []string {
	out := make([]string, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// String returns the comma-joined wire representation
func (s TagSet) String() string {
	return strings.Join(s.List(), ", ")
}
