package api

import (
	"context"
)

var tokenKeys = []string{"token", "jwt", "jwtToken", "accessToken", "access_token", "bearerToken"}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	payload, err := c.Post(ctx, "/auth/login", WithBody(map[string]string{
		"email":    email,
		"password": password,
	}))
	if err != nil {
		return "", err
	}
	token, ok := ExtractToken(payload)
	if !ok {
		return "", ErrMissingToken
	}
	return token, nil
}

// ExtractToken looks for a token at the top level of the login response,
// then under "data".
func ExtractToken(payload any) (string, bool) {
	obj, ok := AsObject(payload)
	if !ok {
		return "", false
	}
	if token, ok := StringField(obj, tokenKeys...); ok {
		return token, true
	}
	if data, ok := AsObject(obj["data"]); ok {
		return StringField(data, tokenKeys...)
	}
	return "", false
}

// ChangeOwnPassword updates the password of the logged-in user.
func (c *Client) ChangeOwnPassword(ctx context.Context, token, currentPassword, newPassword string) error {
	_, err := c.Patch(ctx, "/auth/me/password", WithToken(token), WithBody(map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}))
	return err
}
