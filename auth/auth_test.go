package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password must not match
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)

	// Mangled hash is an error, not a silent mismatch
	_, err = ComparePassword(password, "not-a-hash")
	req.Error(err)
}

func TestTokenRoundtrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(42, "alice", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal(int64(42), claims.UserID)
	req.Equal("alice", claims.Username)
	req.Equal("secure-chat", claims.Issuer)
}

func TestTokenExpiration(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(42, "alice", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.ErrorIs(err, jwt.ErrTokenExpired)
}

func TestTokenTampering(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(42, "alice", time.Hour)
	req.NoError(err)

	// Flip the signature segment
	parts := strings.Split(token, ".")
	req.Len(parts, 3)
	tampered := parts[0] + "." + parts[1] + ".AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	_, err = ValidateToken(tampered)
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "alice", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "alice", "ComplexPass123!"}, true},
		{"Username too short", RegisterRequest{"test@example.com", "al", "ComplexPass123!"}, true},
		{"Username not alphanumeric", RegisterRequest{"test@example.com", "al ice", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "alice", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "alice", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "alice", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "alice", "nouppercase-123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", "alice", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestContactAndGroupValidation(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateContact(ContactRequest{Username: "bob"}))
	req.Error(ValidateContact(ContactRequest{Username: "ab"}))

	req.NoError(ValidateGroup(GroupRequest{Name: "friends", Members: []string{"bob"}}))
	req.Error(ValidateGroup(GroupRequest{Name: "", Members: []string{"bob"}}))
	req.Error(ValidateGroup(GroupRequest{Name: "friends", Members: []string{}}))
	req.Error(ValidateGroup(GroupRequest{Name: "friends", Members: []string{"ab"}}))
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
