// Package twiml renders the XML call-control documents returned to the
// voice provider. Only the verbs the router emits are modelled.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Response is the root document. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Dial bridges the caller to a forwarding number. When the dial completes
// without an answer the provider posts the outcome to Action.
type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Timeout int      `xml:"timeout,attr,omitempty"`
	Action  string   `xml:"action,attr,omitempty"`
	Method  string   `xml:"method,attr,omitempty"`
	Number  string   `xml:"Number"`
}

// Say speaks a message to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Add appends verbs to the response.
func (r *Response) Add(verbs ...any) {
	r.Verbs = append(r.Verbs, verbs...)
}

// Render serialises the response with the XML declaration the provider
// expects.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Forward builds the standard forwarding document: dial the number for up
// to timeout seconds and report the outcome to actionURL.
func Forward(number, actionURL string, timeout int) *Response {
	r := &Response{}
	r.Add(Dial{
		Timeout: timeout,
		Action:  actionURL,
		Method:  "POST",
		Number:  number,
	})
	return r
}

// Reject builds the apology document played when a call cannot be routed.
func Reject(message string) *Response {
	r := &Response{}
	r.Add(Say{Text: message}, Hangup{})
	return r
}
