// Package identity defines the principal carried by a vhub session: the user record as the
// API returns it and the role derived from it.
package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is the free-form attribute bag embedded in a user record.
type Metadata map[string]interface{}

func (m Metadata) role() (string, bool) {
	if m == nil {
		return "", false
	}
	raw, ok := m["role"].(string)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

// User is the record identifying the principal.
//
// Fields the API sends that are not modelled here are kept in Extra so that the record
// round-trips through the credential store unchanged.
type User struct {
	ID           string   `json:"id,omitempty"`
	Email        string   `json:"email,omitempty"`
	FullName     string   `json:"full_name,omitempty"`
	Metadata     Metadata `json:"metadata,omitempty"`
	UserMetadata Metadata `json:"user_metadata,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = map[string]bool{
	"id":            true,
	"email":         true,
	"full_name":     true,
	"metadata":      true,
	"user_metadata": true,
}

// Role returns the role derived from the record.
func (u *User) Role() Role {
	return RoleOf(u)
}

// UnmarshalJSON accepts string or numeric ids and keeps unknown fields.
func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("user record is null")
	}

	var out User
	if raw, ok := fields["id"]; ok {
		id, err := decodeID(raw)
		if err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		out.ID = id
	}
	if raw, ok := fields["email"]; ok {
		if err := decodeOptional(raw, &out.Email); err != nil {
			return fmt.Errorf("user email: %w", err)
		}
	}
	if raw, ok := fields["full_name"]; ok {
		if err := decodeOptional(raw, &out.FullName); err != nil {
			return fmt.Errorf("user full_name: %w", err)
		}
	}
	if raw, ok := fields["metadata"]; ok {
		if err := decodeOptional(raw, &out.Metadata); err != nil {
			return fmt.Errorf("user metadata: %w", err)
		}
	}
	if raw, ok := fields["user_metadata"]; ok {
		if err := decodeOptional(raw, &out.UserMetadata); err != nil {
			return fmt.Errorf("user user_metadata: %w", err)
		}
	}

	for key, raw := range fields {
		if knownFields[key] {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[key] = raw
	}

	*u = out
	return nil
}

// MarshalJSON writes the modelled fields plus everything kept in Extra.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	base, err := json.Marshal(plain(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(u.Extra)+len(knownFields))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, raw := range u.Extra {
		if knownFields[key] {
			continue
		}
		merged[key] = raw
	}
	return json.Marshal(merged)
}

// Encode serializes the record in the form stored under the user key.
func Encode(u *User) (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a record previously written by Encode (or sent by the API).
func Decode(s string) (*User, error) {
	var u User
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func decodeOptional(raw json.RawMessage, target interface{}) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, target)
}
