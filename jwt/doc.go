// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a small manager that
// issues and validates the engine's HS256 access and refresh tokens.
package jwt
