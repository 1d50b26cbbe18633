package plugin

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "eosearch/api/proto/v1"
	"eosearch/internal/errdefs"
	"eosearch/internal/logging"
	"eosearch/internal/transform"
)

// RegistryServer serves the converters of a registry.
type RegistryServer struct {
	pb.UnimplementedConverterServiceServer
	reg *transform.Registry
}

func NewRegistryServer(reg *transform.Registry) *RegistryServer {
	return &RegistryServer{reg: reg}
}

func (s *RegistryServer) Describe(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	names := s.reg.Names()
	ds := make([]Descriptor, 0, len(names))
	for _, name := range names {
		c, _ := s.reg.Get(name)
		ds = append(ds, Descriptor{Name: name, MinArgs: c.MinArgs, MaxArgs: c.MaxArgs})
	}
	return encodeDescriptors(ds), nil
}

func (s *RegistryServer) Convert(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name, value, args := decodeConvert(in)
	sp, err := s.reg.Bind(name, args)
	switch {
	case errors.Is(err, errdefs.ErrUnknownConverter):
		return nil, status.Error(codes.NotFound, err.Error())
	case err != nil:
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := sp.Apply(value)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{fieldValue: wireValue(out)}}, nil
}

// Server serves a converter service, plus the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// StartServer listens on port; port 0 picks a free one.
func StartServer(port int, svc pb.ConverterServiceServer) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	s := &Server{grpc: grpc.NewServer(), health: health.NewServer(), lis: lis}
	pb.RegisterConverterServiceServer(s.grpc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(pb.ConverterService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, nil
}

// Port is the bound port.
func (s *Server) Port() int { return s.lis.Addr().(*net.TCPAddr).Port }

// Serve blocks until the server is stopped.
func (s *Server) Serve() error {
	logging.L().Info("converter plugin serving", "port", s.Port())
	return s.grpc.Serve(s.lis)
}

// Stop marks the service not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
