// Package token issues and verifies the two stateless credentials of the
// login pipeline: 1-hour session tokens and 5-minute pending-2FA tokens.
// Both are HS256 JWTs distinguished by the isTemp claim.
package token
