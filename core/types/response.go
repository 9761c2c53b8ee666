package types

// BankSend instructs the host to move coins out of the contract account once
// the call succeeds.
type BankSend struct {
	ToAddress string `json:"to_address"`
	Amount    Coin   `json:"amount"`
}

// Attribute is a key/value pair describing a state change for off-chain
// observers.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is the outcome of a successful call.
type Response struct {
	Attributes []Attribute `json:"attributes"`
	Messages   []BankSend  `json:"messages"`
	Events     []*Event    `json:"events,omitempty"`
	Data       any         `json:"data,omitempty"`
}

// NewResponse returns an empty response.
func NewResponse() *Response {
	return &Response{Attributes: []Attribute{}, Messages: []BankSend{}}
}

// AddAttribute appends an attribute and returns the response for chaining.
func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// AddMessage appends a payment instruction.
func (r *Response) AddMessage(msg BankSend) *Response {
	r.Messages = append(r.Messages, msg)
	return r
}

// Attribute returns the first value recorded for key.
func (r *Response) Attribute(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}
