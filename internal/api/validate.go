package api

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const maxSubjectLength = 255

// fieldErrors maps a request field to its problems.
type fieldErrors map[string][]string

func (e fieldErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e fieldErrors) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.add(field, "This field is required.")
		return false
	}
	return true
}

func (e fieldErrors) email(field, value string) {
	if !e.required(field, value) {
		return
	}
	if !validEmail(value) {
		e.add(field, "Enter a valid email address.")
	}
}

func (e fieldErrors) subject(value string) {
	if !e.required("subject", value) {
		return
	}
	if utf8.RuneCountInString(value) > maxSubjectLength {
		e.add("subject", fmt.Sprintf("Ensure this field has no more than %d characters.", maxSubjectLength))
	}
}

// validEmail accepts a bare address only; display names and angle brackets
// are rejected.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}
