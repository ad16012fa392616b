// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compilerpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "malloy.services.v1.Compiler"

	Compiler_Compile_FullMethodName       = "/malloy.services.v1.Compiler/Compile"
	Compiler_CompileStream_FullMethodName = "/malloy.services.v1.Compiler/CompileStream"
)

// CompilerClient is the client API for the Compiler service.
type CompilerClient interface {
	Compile(ctx context.Context, in *CompileRequest, opts ...grpc.CallOption) (*CompileResponse, error)
	CompileStream(ctx context.Context, opts ...grpc.CallOption) (Compiler_CompileStreamClient, error)
}

type compilerClient struct {
	cc grpc.ClientConnInterface
}

// NewCompilerClient wraps cc. Every call is made with the package Codec.
func NewCompilerClient(cc grpc.ClientConnInterface) CompilerClient {
	return &compilerClient{cc}
}

func (c *compilerClient) Compile(ctx context.Context, in *CompileRequest, opts ...grpc.CallOption) (*CompileResponse, error) {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	out := new(CompileResponse)
	if err := c.cc.Invoke(ctx, Compiler_Compile_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *compilerClient) CompileStream(ctx context.Context, opts ...grpc.CallOption) (Compiler_CompileStreamClient, error) {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	stream, err := c.cc.NewStream(ctx, &Compiler_ServiceDesc.Streams[0], Compiler_CompileStream_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[CompileRequest, CompilerRequest]{ClientStream: stream}, nil
}

// Compiler_CompileStreamClient is the client side of CompileStream.
type Compiler_CompileStreamClient = grpc.BidiStreamingClient[CompileRequest, CompilerRequest]

// CompilerServer is the server API for the Compiler service.
type CompilerServer interface {
	Compile(context.Context, *CompileRequest) (*CompileResponse, error)
	CompileStream(Compiler_CompileStreamServer) error
}

// Compiler_CompileStreamServer is the server side of CompileStream.
type Compiler_CompileStreamServer = grpc.BidiStreamingServer[CompileRequest, CompilerRequest]

// UnimplementedCompilerServer can be embedded to get Unimplemented answers for missing methods.
type UnimplementedCompilerServer struct{}

func (UnimplementedCompilerServer) Compile(context.Context, *CompileRequest) (*CompileResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Compile not implemented")
}

func (UnimplementedCompilerServer) CompileStream(Compiler_CompileStreamServer) error {
	return status.Error(codes.Unimplemented, "method CompileStream not implemented")
}

// RegisterCompilerServer registers srv on s. The server must be created with
// grpc.ForceServerCodec(Codec{}).
func RegisterCompilerServer(s grpc.ServiceRegistrar, srv CompilerServer) {
	s.RegisterService(&Compiler_ServiceDesc, srv)
}

func _Compiler_Compile_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CompileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServer).Compile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Compiler_Compile_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompilerServer).Compile(ctx, req.(*CompileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Compiler_CompileStream_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(CompilerServer).CompileStream(&grpc.GenericServerStream[CompileRequest, CompilerRequest]{ServerStream: stream})
}

// Compiler_ServiceDesc is the grpc.ServiceDesc for the Compiler service.
var Compiler_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Compile",
			Handler:    _Compiler_Compile_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "CompileStream",
			Handler:       _Compiler_CompileStream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "compiler.proto",
}
