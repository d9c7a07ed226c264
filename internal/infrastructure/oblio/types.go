package oblio

// tokenResponse is the OAuth token endpoint response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// invoiceRequest is the invoice creation payload
type invoiceRequest struct {
	CIF          string           `json:"cif"`
	Client       clientWire       `json:"client"`
	SeriesName   string           `json:"seriesName"`
	IssueDate    string           `json:"issueDate"`
	Currency     string           `json:"currency"`
	Language     string           `json:"language"`
	Mentions     string           `json:"mentions,omitempty"`
	SendEmail    int              `json:"sendEmail"`
	UseStock     int              `json:"useStock"`
	Products     []productWire    `json:"products"`
	ReferenceDoc *referenceDocWire `json:"referenceDocument,omitempty"`
}

type clientWire struct {
	Name    string `json:"name"`
	CIF     string `json:"cif,omitempty"`
	RC      string `json:"rc,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	VATPayer int   `json:"vatPayer"`
	Save     int   `json:"save"`
}

type productWire struct {
	Name          string `json:"name"`
	Code          string `json:"code,omitempty"`
	Price         string `json:"price"`
	MeasuringUnit string `json:"measuringUnit"`
	Currency      string `json:"currency"`
	Quantity      int    `json:"quantity"`
	ProductType   string `json:"productType,omitempty"`
}

type referenceDocWire struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// invoiceResponse is the invoice creation response envelope
type invoiceResponse struct {
	Status        int             `json:"status"`
	StatusMessage string          `json:"statusMessage"`
	Data          invoiceDataWire `json:"data"`
}

type invoiceDataWire struct {
	SeriesName string `json:"seriesName"`
	Number     string `json:"number"`
	Link       string `json:"link"`
}
