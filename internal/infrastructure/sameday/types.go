package sameday

// authResponse is the authentication endpoint response
type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expire_at"`
}

// cityPage is one page of the locality vocabulary endpoint
type cityPage struct {
	Total       int        `json:"total"`
	CurrentPage int        `json:"currentPage"`
	Pages       int        `json:"pages"`
	Data        []cityWire `json:"data"`
}

type cityWire struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	County countyWire `json:"county"`
}

type countyWire struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// awbRequest is the waybill creation payload
type awbRequest struct {
	PickupPoint        string       `json:"pickupPoint"`
	Service            string       `json:"service"`
	PackageType        int          `json:"packageType"`
	PackageWeight      string       `json:"packageWeight"`
	ParcelsCount       int          `json:"parcels"`
	CashOnDelivery     string       `json:"cashOnDelivery"`
	AwbPayment         int          `json:"awbPayment"`
	Observation        string       `json:"observation,omitempty"`
	AwbRecipient       awbRecipient `json:"awbRecipient"`
	ThirdPartyDelivery int          `json:"thirdPartyPickup"`
}

type awbRecipient struct {
	Name         string `json:"name"`
	PersonType   int    `json:"personType"`
	PhoneNumber  string `json:"phoneNumber"`
	Email        string `json:"email,omitempty"`
	CountyString string `json:"countyString"`
	CityString   string `json:"cityString"`
	Address      string `json:"address"`
	PostalCode   string `json:"postalCode,omitempty"`
}

// awbResponse is the waybill creation response
type awbResponse struct {
	AwbNumber string  `json:"awbNumber"`
	AwbCost   float64 `json:"awbCost"`
}

// apiError is the error payload shape
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
