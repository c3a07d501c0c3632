package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feed-lab/domain/dm"
	"feed-lab/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestTokens_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)

	signed, err := tokens.Generate(42, "alice")
	req.NoError(err)
	req.NotEmpty(signed)

	claims, err := tokens.Validate(signed)
	req.NoError(err)
	req.Equal(dm.UserID(42), claims.UserID)
	req.Equal("alice", claims.Username)
}

func TestTokens_Validate_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	signed, err := NewTokens("secret-a", time.Hour).Generate(1, "alice")
	req.NoError(err)

	_, err = NewTokens("secret-b", time.Hour).Validate(signed)
	req.Error(err)
}

func TestTokens_Validate_Rejects_Expired(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", -time.Minute)

	signed, err := tokens.Generate(1, "alice")
	req.NoError(err)

	_, err = tokens.Validate(signed)
	req.Error(err)
}

func TestPassword_Hash_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Sup3rSecret!Pass")
	req.NoError(err)
	req.NotContains(hash, "Sup3rSecret!Pass")

	match, err := ComparePassword("Sup3rSecret!Pass", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!x", hash)
	req.NoError(err)
	req.False(match)
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid", "alice", "Sup3rSecret!Pass", false},
		{"username too short", "al", "Sup3rSecret!Pass", true},
		{"username not alphanumeric", "alice!", "Sup3rSecret!Pass", true},
		{"password too short", "alice", "Short1!", true},
		{"password missing uppercase", "alice", "sup3rsecret!pass", true},
		{"password missing special", "alice", "Sup3rSecretPass1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(RegisterRequest{Username: tt.username, Password: tt.password})
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestValidateRegister_Complexity_Sentinel(t *testing.T) {
	req := require.New(t)
	err := ValidateRegister(RegisterRequest{Username: "alice", Password: "alllowercase1234"})
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func middlewareRouter(tokens Tokens) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	protected := engine.Group("/")
	protected.Use(Middleware(tokens))
	handler := func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	}
	protected.GET("/protected", handler)
	protected.GET(HubPath, handler)
	return engine
}

func TestMiddleware_Bearer_Header(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)
	router := middlewareRouter(tokens)

	signed, err := tokens.Generate(1, "alice")
	req.NoError(err)

	t.Run("should accept a valid bearer token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.Header.Set("Authorization", "Bearer "+signed)
		router.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("should reject a missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject a tampered token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.Header.Set("Authorization", "Bearer "+signed+"x")
		router.ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMiddleware_Query_Token_Only_On_Hub_Path(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)
	router := middlewareRouter(tokens)

	signed, err := tokens.Generate(1, "alice")
	req.NoError(err)

	t.Run("should accept access_token on the hub handshake", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, HubPath+"?access_token="+signed, nil)
		router.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("should reject access_token on any other route", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/protected?access_token="+signed, nil)
		router.ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should prefer the header when both are present", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, HubPath+"?access_token="+signed, nil)
		r.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
