// internal/models/ids.go
package models

import (
	"errors"
	"regexp"
)

// ErrUnknownEntity is wrapped by sessions when an entity cannot be described.
var ErrUnknownEntity = errors.New("SALESFORCE_OBJECT_NOT_FOUND")

var salesforceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{15}([a-zA-Z0-9]{3})?$`)

// IsSalesforceID reports whether s has the shape of a 15 or 18 character
// record id.
func IsSalesforceID(s string) bool {
	return salesforceIDPattern.MatchString(s)
}

// IsOwnerID reports whether s can be the id of a record owner: a user (005)
// or a queue (00G).
func IsOwnerID(s string) bool {
	if !IsSalesforceID(s) {
		return false
	}
	switch s[:3] {
	case "005", "00G":
		return true
	}
	return false
}
