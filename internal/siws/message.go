// Package siws implements Sign-In-With-Solana messages and proof verification.
//
// The message layout follows the wallet-standard SIWS text format so that the
// bytes a wallet signs can be rebuilt exactly from their parsed fields.
package siws

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const header = " wants you to sign in with your Solana account:\n"

// Message holds the fields of a sign-in message. Empty fields are omitted
// from the text form.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        string
	Nonce          string
	IssuedAt       string
	ExpirationTime string
	NotBefore      string
	RequestID      string
	Resources      []string
}

// BuildMessage renders m in canonical text form
func BuildMessage(m Message) string {
	var b strings.Builder
	b.WriteString(m.Domain)
	b.WriteString(header)
	b.WriteString(m.Address)

	if m.Statement != "" {
		b.WriteString("\n\n")
		b.WriteString(m.Statement)
	}

	var fields []string
	appendField := func(label, value string) {
		if value != "" {
			fields = append(fields, label+": "+value)
		}
	}
	appendField("URI", m.URI)
	appendField("Version", m.Version)
	appendField("Chain ID", m.ChainID)
	appendField("Nonce", m.Nonce)
	appendField("Issued At", m.IssuedAt)
	appendField("Expiration Time", m.ExpirationTime)
	appendField("Not Before", m.NotBefore)
	appendField("Request ID", m.RequestID)
	if len(m.Resources) > 0 {
		fields = append(fields, "Resources:")
		for _, r := range m.Resources {
			fields = append(fields, "- "+r)
		}
	}

	if len(fields) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(fields, "\n"))
	}
	return b.String()
}

var messagePattern = regexp.MustCompile(
	`^(?P<domain>[^\n]+?) wants you to sign in with your Solana account:\n` +
		`(?P<address>[^\n]+)(?:\n|$)` +
		`(?:\n(?P<statement>[\S\s]*?)(?:\n|$))??` +
		`(?:\nURI: (?P<uri>[^\n]+))?` +
		`(?:\nVersion: (?P<version>[^\n]+))?` +
		`(?:\nChain ID: (?P<chainId>[^\n]+))?` +
		`(?:\nNonce: (?P<nonce>[^\n]+))?` +
		`(?:\nIssued At: (?P<issuedAt>[^\n]+))?` +
		`(?:\nExpiration Time: (?P<expirationTime>[^\n]+))?` +
		`(?:\nNot Before: (?P<notBefore>[^\n]+))?` +
		`(?:\nRequest ID: (?P<requestId>[^\n]+))?` +
		`(?:\nResources:(?P<resources>(?:\n- [^\n]+)*))?` +
		`\n*$`,
)

// ParseMessage extracts the fields of a sign-in message. It does not check
// that the text is canonical; compare BuildMessage of the result for that.
func ParseMessage(text []byte) (*Message, error) {
	if !utf8.Valid(text) {
		return nil, ErrMalformedMessage
	}

	match := messagePattern.FindSubmatch(text)
	if match == nil {
		return nil, ErrMalformedMessage
	}

	group := func(name string) string {
		return string(match[messagePattern.SubexpIndex(name)])
	}

	m := &Message{
		Domain:         group("domain"),
		Address:        group("address"),
		Statement:      group("statement"),
		URI:            group("uri"),
		Version:        group("version"),
		ChainID:        group("chainId"),
		Nonce:          group("nonce"),
		IssuedAt:       group("issuedAt"),
		ExpirationTime: group("expirationTime"),
		NotBefore:      group("notBefore"),
		RequestID:      group("requestId"),
	}
	if resources := group("resources"); resources != "" {
		m.Resources = strings.Split(resources, "\n- ")[1:]
	}
	return m, nil
}
