package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/models"
	"github.com/linesmerrill/campus-chat/services"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return token
}

func TestAuthService_LoginStoresToken(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodPost, "/api/auth/login", http.StatusOK, models.AuthResponse{Token: "issued", Role: "student"})
	f.handle(http.MethodGet, "/api/auth/profile", http.StatusOK, models.Profile{ID: "u1", Name: "Alice", Email: "a@uni.edu"})
	store := api.NewTokenStore("")
	svc := services.NewAuthService(f.clientWithTokens(t, store), store)

	resp, err := svc.Login(context.Background(), models.Credentials{Email: "a@uni.edu", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "student", resp.Role)
	assert.Equal(t, "issued", store.Token())

	profile, err := svc.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)

	require.Len(t, f.seen(), 2)
	assert.Empty(t, f.seen()[0].Auth)
	assert.JSONEq(t, `{"email":"a@uni.edu","password":"pw"}`, f.seen()[0].Body)
	assert.Equal(t, "Bearer issued", f.seen()[1].Auth)
}

func TestAuthService_LoginRejected(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodPost, "/api/auth/login", http.StatusUnauthorized, models.ErrorMessageResponse{Message: "Invalid credentials"})
	store := api.NewTokenStore("")
	svc := services.NewAuthService(f.client(t, ""), store)

	_, err := svc.Login(context.Background(), models.Credentials{Email: "a@uni.edu", Password: "wrong"})

	assert.ErrorIs(t, err, api.ErrAuthRequired)
	assert.Empty(t, store.Token())
}

func TestAuthService_LoginWithoutToken(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodPost, "/api/auth/login", http.StatusOK, models.AuthResponse{Role: "student"})
	svc := services.NewAuthService(f.client(t, ""), nil)

	_, err := svc.Login(context.Background(), models.Credentials{Email: "a@uni.edu", Password: "pw"})

	assert.ErrorIs(t, err, api.ErrServer)
}

func TestAuthService_Validation(t *testing.T) {
	f := newFakeAPI()
	svc := services.NewAuthService(f.client(t, ""), nil)

	_, err := svc.Login(context.Background(), models.Credentials{Email: " ", Password: "pw"})
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = svc.Register(context.Background(), models.Registration{Name: "Alice", Email: "a@uni.edu"})
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Contains(t, err.Error(), "regNo, course, batch, password")

	_, err = svc.UpdateProfile(context.Background(), models.Profile{Name: "Alice"})
	assert.ErrorIs(t, err, api.ErrValidation)

	assert.Empty(t, f.seen())
}

func TestAuthService_Register(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodPost, "/api/auth/register", http.StatusCreated, models.AuthResponse{Token: "fresh", Role: "student"})
	store := api.NewTokenStore("")
	svc := services.NewAuthService(f.client(t, ""), store)

	_, err := svc.Register(context.Background(), models.Registration{
		Name: "Alice", Email: "a@uni.edu", RegNo: "R-1", Course: "CS", Batch: "2025", Password: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", store.Token())
}

func TestAuthService_UpdateProfile(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodPut, "/api/auth/profile", http.StatusOK, models.Profile{Name: "Alice B", Email: "a@uni.edu"})
	svc := services.NewAuthService(f.client(t, "tok"), nil)

	profile, err := svc.UpdateProfile(context.Background(), models.Profile{Name: "Alice B", Email: "a@uni.edu"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", profile.Name)
	require.Len(t, f.seen(), 1)
	assert.Equal(t, http.MethodPut, f.seen()[0].Method)
}

func TestIdentityFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   models.Identity
	}{
		{
			name:   "id claim",
			claims: jwt.MapClaims{"id": "u1", "role": "student", "name": "Alice"},
			want:   models.Identity{ID: "u1", Name: "Alice", Role: "student"},
		},
		{
			name:   "mongo id claim",
			claims: jwt.MapClaims{"_id": "67f02fa4d9ccbcd395e73ef6", "role": "lecturer"},
			want:   models.Identity{ID: "67f02fa4d9ccbcd395e73ef6", Role: "lecturer"},
		},
		{
			name:   "subject claim",
			claims: jwt.MapClaims{"sub": "u2"},
			want:   models.Identity{ID: "u2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := services.IdentityFromToken(signedToken(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityFromToken_Invalid(t *testing.T) {
	_, err := services.IdentityFromToken("")
	assert.ErrorIs(t, err, api.ErrAuthRequired)

	_, err = services.IdentityFromToken("not-a-jwt")
	assert.ErrorIs(t, err, api.ErrAuthRequired)

	_, err = services.IdentityFromToken(signedToken(t, jwt.MapClaims{"role": "student"}))
	assert.ErrorIs(t, err, api.ErrAuthRequired)
}
