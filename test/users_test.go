//go:build integration_test || all_tests

package test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/2beens/gymtracker/internal/users"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestUsers_RegisterAndLogin() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, driver := range s.drivers() {
		s.Run(driver, func() {
			t := s.T()
			creds := users.Credentials{
				Email:    gofakeit.Email(),
				Password: gofakeit.Password(true, true, true, false, false, 14),
			}

			code, body := s.postJSON(ctx, driver, "/register", creds, nil)
			assert.Equal(t, http.StatusCreated, code)
			assert.Equal(t, "User registered successfully", s.message(body))

			code, body = s.postJSON(ctx, driver, "/register", creds, nil)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "Email already exists", s.message(body))

			code, body = s.postJSON(ctx, driver, "/login", creds, nil)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, "Login successful", s.message(body))

			code, body = s.postJSON(ctx, driver, "/login", users.Credentials{Email: creds.Email, Password: "nope"}, nil)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Equal(t, "Invalid credentials", s.message(body))

			code, body = s.postJSON(ctx, driver, "/login", users.Credentials{Email: creds.Email}, nil)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "Email and password are required", s.message(body))
		})
	}
}

func (s *IntegrationTestSuite) TestUsers_PasswordStoredHashed() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	creds := users.Credentials{Email: gofakeit.Email(), Password: "plain-text-pass"}
	code, _ := s.postJSON(ctx, postgresDriverKey, "/register", creds, nil)
	require.Equal(t, http.StatusCreated, code)

	var hash string
	err := s.DB.QueryRowContext(ctx, `SELECT password_hash FROM app_user WHERE email = $1`, creds.Email).Scan(&hash)
	require.NoError(t, err)
	assert.NotEqual(t, creds.Password, hash)
	assert.Contains(t, hash, "$2a$")
}

func (s *IntegrationTestSuite) TestUsers_RateLimited() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, driver := range s.drivers() {
		s.Run(driver, func() {
			t := s.T()
			// own client ip, so the bucket is not shared with other tests
			headers := map[string]string{"X-Real-Ip": fmt.Sprintf("203.0.113.%d", 10+i)}
			creds := users.Credentials{Email: gofakeit.Email(), Password: "whatever"}

			for j := 0; j < testRateLimitMin; j++ {
				code, _ := s.postJSON(ctx, driver, "/login", creds, headers)
				require.Equal(t, http.StatusUnauthorized, code, "attempt %d", j)
			}

			code, body := s.postJSON(ctx, driver, "/login", creds, headers)
			assert.Equal(t, http.StatusTooManyRequests, code)
			assert.Contains(t, s.message(body), "retry after")
		})
	}
}
