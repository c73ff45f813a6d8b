// Package twofactor owns the email one-time-code challenge lifecycle:
// generation, storage with TTL, constant-time verification, and the
// mail-send cooldown marker. Delivery itself is the caller's collaborator.
package twofactor
