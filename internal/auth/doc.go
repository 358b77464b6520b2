// Package auth provides session authentication and authorization for the
// books MCP server.
//
// # Tokens
//
// A Codec issues HS256 tokens of the form header.payload.signature with the
// header {"typ":"JWT","alg":"HS256"} and the claims user_id, username, iat
// and exp. Verify checks the signature before it looks at the payload and
// reports malformed, bad-signature and expired tokens as distinct errors:
//
//	codec, err := auth.NewCodec(secret)
//	token, err := codec.Issue(userID, username)
//	claims, err := codec.Verify(token)
//
// # Sessions
//
// A SessionStore keeps immutable Session records. MemoryStore is the default
// backend; RedisStore shares sessions between processes. A session is valid
// while its age is at most the TTL.
//
// # Gate
//
// The Gate owns one active-session pointer per transport connection.
// Authenticate replaces the pointer (the superseded record stays in the
// store). Authorize lets public operations through and resolves the caller
// of protected ones, deleting a session that has outlived its TTL on first
// use. Failures are reported as *Denial values carrying a kind, a message
// and a hint, never as transport errors.
//
// Passwords are optional. When no users are configured any username is
// accepted; otherwise Credentials checks bcrypt hashes.
package auth
