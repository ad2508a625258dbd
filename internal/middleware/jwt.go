package middleware

import (
	"context"
	"net/http"
	"strings"

	"chainvoice/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTMiddleware validates the bearer token and places the authenticated
// creator wallet address into the request context. Tokens are issued after a
// wallet signature challenge; the sub claim is the wallet address.
func JWTMiddleware(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token format")
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			})
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token not valid")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}

			wallet, ok := claims["sub"].(string)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing wallet in token")
			}

			if err := common.ValidateWalletAddress(wallet, "wallet"); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid wallet format")
			}

			ctx := context.WithValue(c.Request().Context(), common.CreatorWalletKey, wallet)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// GetCreatorWalletFromContext extracts the wallet address from request context
func GetCreatorWalletFromContext(ctx context.Context) (string, bool) {
	return common.GetCreatorWalletFromContext(ctx)
}

// WalletFromToken reads the wallet address out of a token already verified by
// the echo-jwt middleware (stored under the "user" context key).
func WalletFromToken(c echo.Context) (string, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
	}
	wallet, ok := claims["sub"].(string)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing wallet in token")
	}
	if err := common.ValidateWalletAddress(wallet, "wallet"); err != nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid wallet format")
	}
	return wallet, nil
}
