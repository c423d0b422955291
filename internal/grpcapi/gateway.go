package grpcapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// NewGateway returns an HTTP/JSON mux that proxies to the PostLedger service
// over cc:
//
//	POST /v1/posts         → CreatePost
//	GET  /v1/posts         → GetAllPosts
//	GET  /v1/posts/count   → GetPostCount
//	GET  /v1/posts/{id}    → GetPost
//
// The Authorization header is forwarded as gRPC metadata.
func NewGateway(cc grpc.ClientConnInterface) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions: protojson.MarshalOptions{
				UseProtoNames:   true,
				EmitUnpopulated: true,
			},
			UnmarshalOptions: protojson.UnmarshalOptions{
				DiscardUnknown: true,
			},
		}),
	)
	gw := &gateway{mux: mux, client: NewClient(cc)}

	// Later registrations take precedence, so the literal /count route goes
	// after the {id} pattern.
	routes := []struct {
		method, pattern string
		h               runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/posts", gw.createPost},
		{http.MethodGet, "/v1/posts", gw.getAllPosts},
		{http.MethodGet, "/v1/posts/{id}", gw.getPost},
		{http.MethodGet, "/v1/posts/count", gw.getPostCount},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.h); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

type gateway struct {
	mux    *runtime.ServeMux
	client *Client
}

// forward runs call with a context annotated from req and writes the result.
func (g *gateway) forward(w http.ResponseWriter, req *http.Request, method, pattern string, call func(ctx context.Context, inbound runtime.Marshaler) (proto.Message, error)) {
	inbound, outbound := runtime.MarshalerForRequest(g.mux, req)
	ctx, err := runtime.AnnotateContext(req.Context(), g.mux, req, method, runtime.WithHTTPPathPattern(pattern))
	if err != nil {
		runtime.HTTPError(req.Context(), g.mux, outbound, w, req, err)
		return
	}
	resp, err := call(ctx, inbound)
	if err != nil {
		runtime.HTTPError(ctx, g.mux, outbound, w, req, err)
		return
	}
	runtime.ForwardResponseMessage(ctx, g.mux, outbound, w, req, resp)
}

func (g *gateway) createPost(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	g.forward(w, req, MethodCreatePost, "/v1/posts", func(ctx context.Context, inbound runtime.Marshaler) (proto.Message, error) {
		in := new(structpb.Struct)
		if err := inbound.NewDecoder(req.Body).Decode(in); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
		}
		return g.client.CreatePost(ctx, in)
	})
}

func (g *gateway) getPost(w http.ResponseWriter, req *http.Request, params map[string]string) {
	g.forward(w, req, MethodGetPost, "/v1/posts/{id}", func(ctx context.Context, _ runtime.Marshaler) (proto.Message, error) {
		id, err := strconv.ParseUint(params["id"], 10, 64)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "id must be a non-negative integer")
		}
		return g.client.GetPost(ctx, wrapperspb.UInt64(id))
	})
}

func (g *gateway) getAllPosts(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	g.forward(w, req, MethodGetAllPosts, "/v1/posts", func(ctx context.Context, _ runtime.Marshaler) (proto.Message, error) {
		return g.client.GetAllPosts(ctx, &emptypb.Empty{})
	})
}

func (g *gateway) getPostCount(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	g.forward(w, req, MethodGetPostCount, "/v1/posts/count", func(ctx context.Context, _ runtime.Marshaler) (proto.Message, error) {
		return g.client.GetPostCount(ctx, &emptypb.Empty{})
	})
}
