// Package password provides one-way credential hashing (argon2id, PHC string
// format) and the account password strength policy.
//
// Vault.Verify is deliberately infallible: malformed or foreign digests verify
// as false instead of surfacing a parse error, so credential checks cannot be
// distinguished by error shape.
package password
