// Package grpcapi serves the post ledger over gRPC.
//
// The service is declared by hand on protobuf well-known types, so it needs
// no generated code:
//
//	rpc CreatePost(google.protobuf.Struct)       returns (google.protobuf.UInt64Value)
//	rpc GetPost(google.protobuf.UInt64Value)     returns (google.protobuf.Struct)
//	rpc GetAllPosts(google.protobuf.Empty)       returns (google.protobuf.ListValue)
//	rpc GetPostCount(google.protobuf.Empty)      returns (google.protobuf.UInt64Value)
//
// CreatePost requires a caller token in the "authorization" metadata.
package grpcapi

import (
	"context"
	"errors"
	"time"

	"github.com/jmerrifield20/postledger/internal/identity"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "postledger.v1.PostLedger"

// Full method names.
const (
	MethodCreatePost   = "/" + ServiceName + "/CreatePost"
	MethodGetPost      = "/" + ServiceName + "/GetPost"
	MethodGetAllPosts  = "/" + ServiceName + "/GetAllPosts"
	MethodGetPostCount = "/" + ServiceName + "/GetPostCount"
)

// PostLedgerServer is the server API of the PostLedger service.
type PostLedgerServer interface {
	CreatePost(context.Context, *structpb.Struct) (*wrapperspb.UInt64Value, error)
	GetPost(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	GetAllPosts(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetPostCount(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
}

// Service implements PostLedgerServer on top of a postledger.Ledger.
type Service struct {
	ledger postledger.Ledger
	logger *zap.Logger
	now    func() time.Time
}

var _ PostLedgerServer = (*Service)(nil)

// New creates a Service.
func New(ledger postledger.Ledger, logger *zap.Logger) *Service {
	return &Service{ledger: ledger, logger: logger, now: time.Now}
}

// SetClock overrides the timestamp source used for new posts.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Register attaches s to a gRPC server.
func Register(gs grpc.ServiceRegistrar, s PostLedgerServer) {
	gs.RegisterService(&ServiceDesc, s)
}

// CreatePost appends a post authored by the caller in ctx.
func (s *Service) CreatePost(ctx context.Context, req *structpb.Struct) (*wrapperspb.UInt64Value, error) {
	caller, ok := identity.CallerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "caller token required")
	}
	title, err := stringField(req, "title")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	contentRef, err := stringField(req, "content_ref")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	call := postledger.Call{Caller: caller, Timestamp: s.now().Unix()}
	id, err := s.ledger.CreatePost(ctx, call, title, contentRef)
	if err != nil {
		s.logger.Error("create post", zap.String("author", string(caller)), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to create post")
	}
	return wrapperspb.UInt64(id), nil
}

// GetPost returns a single post.
func (s *Service) GetPost(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	post, err := s.ledger.GetPost(ctx, req.GetValue())
	if errors.Is(err, postledger.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "post %d not found", req.GetValue())
	}
	if err != nil {
		s.logger.Error("get post", zap.Uint64("id", req.GetValue()), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to get post")
	}
	return PostToStruct(post)
}

// GetAllPosts returns every post in id order.
func (s *Service) GetAllPosts(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	posts, err := s.ledger.GetAllPosts(ctx)
	if err != nil {
		s.logger.Error("list posts", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to list posts")
	}
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(posts))}
	for i := range posts {
		st, err := PostToStruct(&posts[i])
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		list.Values = append(list.Values, structpb.NewStructValue(st))
	}
	return list, nil
}

// GetPostCount returns the number of posts.
func (s *Service) GetPostCount(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	n, err := s.ledger.GetPostCount(ctx)
	if err != nil {
		s.logger.Error("count posts", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to count posts")
	}
	return wrapperspb.UInt64(n), nil
}

// ServiceDesc describes the PostLedger service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PostLedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreatePost", Handler: createPostHandler},
		{MethodName: "GetPost", Handler: getPostHandler},
		{MethodName: "GetAllPosts", Handler: getAllPostsHandler},
		{MethodName: "GetPostCount", Handler: getPostCountHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "postledger/v1/postledger.proto",
}

func createPostHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PostLedgerServer).CreatePost(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCreatePost}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PostLedgerServer).CreatePost(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getPostHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PostLedgerServer).GetPost(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetPost}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PostLedgerServer).GetPost(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func getAllPostsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PostLedgerServer).GetAllPosts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetAllPosts}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PostLedgerServer).GetAllPosts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getPostCountHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PostLedgerServer).GetPostCount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetPostCount}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PostLedgerServer).GetPostCount(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
