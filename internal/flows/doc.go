// Package flows implements the login, 2FA verification, and logout
// protocols as free functions over explicit dependency structs. The root
// engine wires real stores and collaborators into Deps once at build time;
// tests wire fakes.
package flows
