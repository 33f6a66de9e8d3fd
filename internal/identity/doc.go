// Package identity wraps the hosted identity provider behind signup,
// login and confirmation operations, including the client secret hash
// the provider requires on every call.
package identity
