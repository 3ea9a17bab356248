package micromeda

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/micromeda/micromeda-server/common"
	"github.com/micromeda/micromeda-server/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const grpcServiceName = "micromeda.GenomeProperties"

// GenomePropertiesServer serves property metadata and results trees over
// gRPC. Requests and responses are google.protobuf.Struct documents shaped
// like the HTTP JSON bodies.
type GenomePropertiesServer interface {
	GetGenomeProperty(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetGenomeProperties(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetResultTree(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type genomePropertiesServer struct {
	impl MicromedaIntf
}

// NewGrpcServer returns the gRPC server backed by impl.
func NewGrpcServer(impl MicromedaIntf) GenomePropertiesServer {
	return &genomePropertiesServer{impl: impl}
}

// GetGenomeProperty expects {"id": "GenPropXXXX"}.
func (s *genomePropertiesServer) GetGenomeProperty(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	info, err := s.impl.GetProperty(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(info)
}

// GetGenomeProperties expects {"ids": [...]}; without ids every property is
// returned.
func (s *genomePropertiesServer) GetGenomeProperties(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	idsValue, ok := in.GetFields()["ids"]
	if !ok {
		return toStruct(s.impl.GetAllProperties(ctx))
	}

	var ids []string
	for _, value := range idsValue.GetListValue().GetValues() {
		if id := value.GetStringValue(); id != "" {
			ids = append(ids, id)
		}
	}
	return toStruct(s.impl.GetProperties(ctx, ids))
}

// GetResultTree expects {"result_key": "..."}; an empty key selects the
// default results.
func (s *genomePropertiesServer) GetResultTree(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	resultKey := in.GetFields()["result_key"].GetStringValue()
	ctx = context.WithValue(ctx, logging.ContextKeyResultKey, resultKey)

	document, err := s.impl.GetResultTree(ctx, resultKey)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(document)
}

// toStruct converts a JSON serializable value into a Struct.
func toStruct(value interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return result, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, common.ErrNoSuchProperty),
		errors.Is(err, common.ErrNoSuchStep),
		errors.Is(err, common.ErrResultsNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// RegisterGenomePropertiesServer registers srv on the gRPC server.
func RegisterGenomePropertiesServer(s *grpc.Server, srv GenomePropertiesServer) {
	s.RegisterService(&genomePropertiesServiceDesc, srv)
}

func unaryHandler(method string, call func(GenomePropertiesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GenomePropertiesServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + grpcServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(GenomePropertiesServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var genomePropertiesServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*GenomePropertiesServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetGenomeProperty", GenomePropertiesServer.GetGenomeProperty),
		unaryHandler("GetGenomeProperties", GenomePropertiesServer.GetGenomeProperties),
		unaryHandler("GetResultTree", GenomePropertiesServer.GetResultTree),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "micromeda/genome_properties.proto",
}
