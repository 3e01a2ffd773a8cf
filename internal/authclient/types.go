package authclient

import (
	"bytes"
	"encoding/json"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
)

// Session is the result of a successful login or registration.
type Session struct {
	Token        string
	RefreshToken string
	User         *auth.User
}

// RegisterRequest carries the registration form fields.
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// ProfileUpdate is a partial user record. Only the keys present are sent.
type ProfileUpdate map[string]any

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// tokenResponse is the body of login, register and refresh. Some backend
// builds wrap it in {"data": ...}.
type tokenResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	User         *auth.User     `json:"user"`
	Data         *tokenResponse `json:"data"`
}

func (r *tokenResponse) unwrap() *tokenResponse {
	if r.Token == "" && r.Data != nil {
		return r.Data
	}
	return r
}

// errorBody is the shape of a non-2xx response.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

var nullJSON = []byte("null")

// decodeUser accepts a user either bare or wrapped in {"user": ...} or
// {"data": ...}. A JSON null yields a nil user.
func decodeUser(body []byte) (*auth.User, error) {
	body = bytes.TrimSpace(body)
	if bytes.Equal(body, nullJSON) {
		return nil, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}

	_, hasEmail := top["email"]
	_, hasID := top["id"]
	if !hasEmail && !hasID {
		for _, key := range []string{"user", "data"} {
			inner := bytes.TrimSpace(top[key])
			if len(inner) > 0 && (inner[0] == '{' || bytes.Equal(inner, nullJSON)) {
				return decodeUser(inner)
			}
		}
	}

	var u auth.User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
