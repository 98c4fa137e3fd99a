package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Username string `json:"username" validate:"required,max=8"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (r *testRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func TestValidate(t *testing.T) {
	tcases := []struct {
		name     string
		req      testRequest
		expected map[string]string
	}{
		{
			name: "valid",
			req:  testRequest{Username: "alice"},
		},
		{
			name:     "missing username",
			req:      testRequest{},
			expected: map[string]string{"username": "is required"},
		},
		{
			name:     "username too long",
			req:      testRequest{Username: "alice_in_wonderland"},
			expected: map[string]string{"username": "must be at most 8 characters"},
		},
		{
			name:     "invalid email",
			req:      testRequest{Username: "alice", Email: "nope"},
			expected: map[string]string{"email": "must be a valid email address"},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.req)
			if tc.expected == nil {
				assert.NoError(t, err)
				return
			}

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tc.expected, valErr.Fields())
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"   "}`))

		var dst testRequest
		err := DecodeAndValidate(req, &dst)

		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "username is required", valErr.Error())
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))

		var dst testRequest
		err := DecodeAndValidate(req, &dst)
		assert.ErrorIs(t, err, ErrMalformedBody)
	})

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":" bob "}`))

		var dst testRequest
		require.NoError(t, DecodeAndValidate(req, &dst))
		assert.Equal(t, "bob", dst.Username)
	})
}
