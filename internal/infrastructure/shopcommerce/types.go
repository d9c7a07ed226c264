package shopcommerce

// orderEnvelope wraps a single order response
type orderEnvelope struct {
	Order orderWire `json:"order"`
}

// orderUpdateEnvelope wraps an order update request
type orderUpdateEnvelope struct {
	Order orderUpdateWire `json:"order"`
}

// orderWire is the Admin API order representation, limited to the fields the
// service reads
type orderWire struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	FinancialStatus string            `json:"financial_status"`
	Currency        string            `json:"currency"`
	TotalPrice      string            `json:"total_price"`
	TotalShipping   priceSetWire      `json:"total_shipping_price_set"`
	Tags            string            `json:"tags"`
	CreatedAt       string            `json:"created_at"`
	LineItems       []lineItemWire    `json:"line_items"`
	ShippingAddress *addressWire      `json:"shipping_address"`
	BillingAddress  *addressWire      `json:"billing_address"`
	Fulfillments    []fulfillmentWire `json:"fulfillments"`
	NoteAttributes  []noteAttrWire    `json:"note_attributes"`
}

// orderUpdateWire carries the writable subset of an order
type orderUpdateWire struct {
	ID   int64  `json:"id"`
	Tags string `json:"tags"`
}

type priceSetWire struct {
	ShopMoney moneyWire `json:"shop_money"`
}

type moneyWire struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type lineItemWire struct {
	ID               int64  `json:"id"`
	SKU              string `json:"sku"`
	Title            string `json:"title"`
	Quantity         int    `json:"quantity"`
	Price            string `json:"price"`
	RequiresShipping bool   `json:"requires_shipping"`
}

type addressWire struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

type fulfillmentWire struct {
	ID             int64  `json:"id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
}

// noteAttrWire carries buyer-entered checkout attributes (fiscal code etc.)
type noteAttrWire struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// metafieldsEnvelope wraps a metafield list response
type metafieldsEnvelope struct {
	Metafields []metafieldWire `json:"metafields"`
}

// metafieldEnvelope wraps a single metafield request/response
type metafieldEnvelope struct {
	Metafield metafieldWire `json:"metafield"`
}

type metafieldWire struct {
	ID        int64  `json:"id,omitempty"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type,omitempty"`
}

// errorEnvelope is the Admin API error payload
type errorEnvelope struct {
	Errors any `json:"errors"`
}
