package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const ctxCallerClaims = "postledger_caller_claims"

type callerCtxKey struct{}

// RequireCaller returns a Gin middleware that enforces a valid Bearer caller token.
//
// On success it injects the *CallerClaims into the context under the
// "postledger_caller_claims" key.
func RequireCaller(tokens *CallerTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer caller token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid caller token: " + err.Error(),
			})
			return
		}

		c.Set(ctxCallerClaims, claims)
		c.Next()
	}
}

// CallerClaimsFromCtx retrieves the claims injected by RequireCaller.
// Returns nil if no caller token is present in the context.
func CallerClaimsFromCtx(c *gin.Context) *CallerClaims {
	v, _ := c.Get(ctxCallerClaims)
	claims, _ := v.(*CallerClaims)
	return claims
}

// UnaryCallerInterceptor returns a gRPC interceptor that verifies the
// "authorization: Bearer <token>" metadata when present and stores the
// caller address in the request context. Calls without the header pass
// through anonymously; handlers that need a caller use CallerFromContext.
func UnaryCallerInterceptor(tokens *CallerTokenIssuer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		vals := md.Get("authorization")
		if len(vals) == 0 {
			return handler(ctx, req)
		}
		if !strings.HasPrefix(vals[0], "Bearer ") {
			return nil, status.Error(codes.Unauthenticated, "Bearer caller token required")
		}
		claims, err := tokens.Verify(strings.TrimPrefix(vals[0], "Bearer "))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid caller token: "+err.Error())
		}
		return handler(WithCaller(ctx, claims.Address), req)
	}
}

// WithCaller returns a copy of ctx carrying the caller address.
func WithCaller(ctx context.Context, addr postledger.Address) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, addr)
}

// CallerFromContext returns the caller address stored by WithCaller.
func CallerFromContext(ctx context.Context) (postledger.Address, bool) {
	addr, ok := ctx.Value(callerCtxKey{}).(postledger.Address)
	return addr, ok && addr != ""
}
