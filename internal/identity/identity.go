// Package identity supplies the caller identity that the post ledger records
// as a post's author.
//
// It provides:
//   - CallerTokenIssuer: issues and verifies HS256 JWT caller tokens
//   - AddressFromSubject: maps a token subject onto a ledger Address
//   - RequireCaller: Gin middleware enforcing a Bearer caller token
//   - UnaryCallerInterceptor: the same check for gRPC unary calls
package identity
