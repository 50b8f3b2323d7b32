package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/models"
)

// AuthService contains the authentication and profile calls of the API
type AuthService interface {
	Register(ctx context.Context, reg models.Registration) (*models.AuthResponse, error)
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	Profile(ctx context.Context) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profile models.Profile) (*models.Profile, error)
}

// TokenSetter receives the token issued at login or registration
type TokenSetter interface {
	Set(token string)
}

type authService struct {
	client *api.Client
	store  TokenSetter
}

// NewAuthService initializes a new instance of the auth service. When store is not nil
// it receives the token of every successful login or registration.
func NewAuthService(client *api.Client, store TokenSetter) AuthService {
	return &authService{
		client: client,
		store:  store,
	}
}

func (a *authService) Register(ctx context.Context, reg models.Registration) (*models.AuthResponse, error) {
	missing := missingFields(
		[2]string{"name", reg.Name},
		[2]string{"email", reg.Email},
		[2]string{"regNo", reg.RegNo},
		[2]string{"course", reg.Course},
		[2]string{"batch", reg.Batch},
		[2]string{"password", reg.Password},
	)
	if len(missing) > 0 {
		return nil, api.Validationf("missing fields: %s", strings.Join(missing, ", "))
	}
	return a.authenticate(ctx, "/api/auth/register", reg)
}

func (a *authService) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, api.Validationf("email and password are required")
	}
	return a.authenticate(ctx, "/api/auth/login", creds)
}

func (a *authService) authenticate(ctx context.Context, path string, body interface{}) (*models.AuthResponse, error) {
	resp := &models.AuthResponse{}
	err := a.client.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: body, Public: true}, resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: %s returned no token", api.ErrServer, path)
	}
	if a.store != nil {
		a.store.Set(resp.Token)
	}
	return resp, nil
}

func (a *authService) Profile(ctx context.Context) (*models.Profile, error) {
	profile := &models.Profile{}
	err := a.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/api/auth/profile"}, profile)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (a *authService) UpdateProfile(ctx context.Context, profile models.Profile) (*models.Profile, error) {
	if strings.TrimSpace(profile.Name) == "" || strings.TrimSpace(profile.Email) == "" {
		return nil, api.Validationf("name and email are required")
	}
	updated := &models.Profile{}
	err := a.client.Do(ctx, api.Request{Method: http.MethodPut, Path: "/api/auth/profile", Body: profile}, updated)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// missingFields returns the names of the blank {name, value} pairs
func missingFields(fields ...[2]string) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	return missing
}

// IdentityFromToken reads the current user out of the access token claims. The
// signature is not checked: the server verifies the token on every call, the client
// only needs to know who it is.
func IdentityFromToken(token string) (models.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return models.Identity{}, api.ErrAuthRequired
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return models.Identity{}, fmt.Errorf("%w: failed to parse token: %w", api.ErrAuthRequired, err)
	}

	id := firstClaim(claims, "id", "_id", "sub")
	if id == "" {
		return models.Identity{}, fmt.Errorf("%w: token has no user id", api.ErrAuthRequired)
	}
	return models.Identity{
		ID:   id,
		Name: firstClaim(claims, "name"),
		Role: firstClaim(claims, "role"),
	}, nil
}

func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
