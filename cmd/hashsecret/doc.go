// Command hashsecret manages upload secrets for the file uploader.
//
// Usage:
//
//	hashsecret <command>
//
// Commands:
//
//	hash    Prompt for a secret twice and print its bcrypt hash. The hash
//	        can be placed in ALLOWED_PASSWORDS instead of the plain text.
//
//	check   Prompt for a secret and report whether the server's current
//	        ALLOWED_PASSWORDS would accept it.
//
// Environment:
//
//	ALLOWED_PASSWORDS - Comma-separated secrets, bcrypt hashes, or "open"
package main
