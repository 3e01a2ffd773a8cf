package auth

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Role is the access tier derived from a user record.
type Role string

const (
	// RoleAnonymous is the role of a client with no established session.
	RoleAnonymous Role = "anonymous"

	// RoleUser is a marketplace member: buys, sells and lists vehicles and batteries.
	RoleUser Role = "user"

	// RoleStaff moderates listings and handles support from the /staff dashboard.
	RoleStaff Role = "staff"

	// RoleAdmin runs the marketplace from the /admin dashboard.
	RoleAdmin Role = "admin"
)

// ID is an identifier the backend sends either as a JSON number or as a string.
// The wire form is kept so a round-trip does not change the JSON type.
type ID struct {
	value   string
	numeric bool
}

// NumericID returns an ID that serialises as a JSON number.
func NumericID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10), numeric: true}
}

// StringID returns an ID that serialises as a JSON string.
func StringID(s string) ID {
	return ID{value: s}
}

// String returns the identifier text ("" when absent).
func (id ID) String() string { return id.value }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return id.value == "" }

// UnmarshalJSON accepts a number, a string or null. Any other JSON value
// decodes to the zero ID rather than failing the whole record.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*id = ID{}

	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id.value = s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		id.value = n.String()
		id.numeric = true
	}
	return nil
}

// MarshalJSON writes the identifier in its original JSON type.
func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.value == "":
		return []byte("null"), nil
	case id.numeric:
		return []byte(id.value), nil
	default:
		return json.Marshal(id.value)
	}
}

// User is the account record returned by the marketplace backend.
//
// The backend carries the role in three differently named fields (roleId,
// role, roleName) and does not fill them consistently; use Classifier to
// derive a Role. Fields the client does not model are kept in Extra and
// written back unchanged.
type User struct {
	ID        ID     `json:"id,omitzero"`
	Email     string `json:"email"`
	FullName  string `json:"fullName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Status    string `json:"status,omitempty"`
	RoleID    ID     `json:"roleId,omitzero"`
	Role      string `json:"role,omitempty"`
	RoleName  string `json:"roleName,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// userFields mirrors User without its methods so the codecs can delegate to encoding/json.
type userFields User

var knownUserKeys = []string{"id", "email", "fullName", "phone", "avatarUrl", "status", "roleId", "role", "roleName"}

func (u *User) UnmarshalJSON(data []byte) error {
	var f userFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownUserKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		f.Extra = all
	}

	*u = User(f)
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(userFields(u))
	if err != nil || len(u.Extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range u.Extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy of u. A nil receiver yields nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}
