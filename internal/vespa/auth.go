package vespa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// User is the profile of the signed-in staff member.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
	// Raw is the complete response object.
	Raw Record `json:"-"`
}

// Authenticate logs in and stores the returned token pair. A rejected login
// returns *AuthenticationError; stored credentials are left untouched then.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*LoginResponse, error) {
	start := time.Now()
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"username": username,
			"password": password,
		}).
		Post("/auth/login/")
	if err != nil {
		c.metrics.observeRequest(http.MethodPost, 0, time.Since(start))
		return nil, fmt.Errorf("login: %w", err)
	}
	c.metrics.observeRequest(http.MethodPost, res.StatusCode(), time.Since(start))

	if !res.IsSuccess() {
		body := Record{}
		if err := json.Unmarshal(res.Body(), &body); err != nil || body == nil {
			body = Record{}
		}
		return nil, &AuthenticationError{
			Status:  res.StatusCode(),
			Message: errorMessage(body, "error", "message", "login failed"),
		}
	}

	login := &LoginResponse{}
	if err := json.Unmarshal(res.Body(), login); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if err := json.Unmarshal(res.Body(), &login.Raw); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	c.session.SetCredentials(ctx, login.AccessToken, login.RefreshToken)
	log.Info().Str("username", login.User.Username).Str("role", login.User.Role).Msg("logged in")

	return login, nil
}

// Deauthenticate tells the backend to end the session and clears the local
// credentials. The backend call is best effort: its failure is logged, never
// returned. Without an access token the backend is not contacted.
func (c *Client) Deauthenticate(ctx context.Context) {
	access, _ := c.session.Credentials()
	if access != "" {
		_, err := c.Request(ctx, "/auth/logout/", &RequestOptions{Method: http.MethodPost})
		if err != nil {
			log.Warn().Err(err).Msg("logout request failed")
		}
	}
	c.session.ClearCredentials(ctx)
}

// CurrentUser returns the profile of the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := c.Request(ctx, "/auth/me/", nil)
	if err != nil {
		return nil, err
	}
	rec, err := unwrapRecord(raw, "user")
	if err != nil {
		return nil, err
	}

	// Re-encode the unwrapped object so both {"user": {...}} and a bare
	// profile decode the same way
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	user := &User{}
	if err := json.Unmarshal(data, user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (c *Client) ChangePassword(ctx context.Context, newPassword string) (Record, error) {
	return c.post(ctx, "/auth/change-password/", map[string]string{"new_password": newPassword})
}

func (c *Client) ChangeUsername(ctx context.Context, newUsername string) (Record, error) {
	return c.post(ctx, "/auth/change-username/", map[string]string{"new_username": newUsername})
}

// GetUsers lists staff accounts. Admin only.
func (c *Client) GetUsers(ctx context.Context) (*List, error) {
	return c.getList(ctx, "/auth/users/", nil, "users")
}
