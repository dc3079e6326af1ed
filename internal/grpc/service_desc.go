package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "grader.v1.Grading"

// GradingServer is the server API for the Grading service. Requests and
// responses are JSON-shaped structpb.Struct messages.
type GradingServer interface {
	ExtractRubric(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRubric(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEvaluation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvaluations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateLearnerReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitHumanGrading(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompareWithHuman(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteHumanGrading(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterGradingServer(s grpc.ServiceRegistrar, srv GradingServer) {
	s.RegisterService(&GradingServiceDesc, srv)
}

func unaryHandler(method string, call func(GradingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GradingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GradingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var GradingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GradingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExtractRubric", Handler: unaryHandler("ExtractRubric", GradingServer.ExtractRubric)},
		{MethodName: "GetRubric", Handler: unaryHandler("GetRubric", GradingServer.GetRubric)},
		{MethodName: "Evaluate", Handler: unaryHandler("Evaluate", GradingServer.Evaluate)},
		{MethodName: "GetEvaluation", Handler: unaryHandler("GetEvaluation", GradingServer.GetEvaluation)},
		{MethodName: "ListEvaluations", Handler: unaryHandler("ListEvaluations", GradingServer.ListEvaluations)},
		{MethodName: "GenerateLearnerReport", Handler: unaryHandler("GenerateLearnerReport", GradingServer.GenerateLearnerReport)},
		{MethodName: "SubmitHumanGrading", Handler: unaryHandler("SubmitHumanGrading", GradingServer.SubmitHumanGrading)},
		{MethodName: "CompareWithHuman", Handler: unaryHandler("CompareWithHuman", GradingServer.CompareWithHuman)},
		{MethodName: "DeleteHumanGrading", Handler: unaryHandler("DeleteHumanGrading", GradingServer.DeleteHumanGrading)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grader/v1/grading.proto",
}

// GradingClient calls the Grading service.
type GradingClient struct {
	cc grpc.ClientConnInterface
}

func NewGradingClient(cc grpc.ClientConnInterface) *GradingClient {
	return &GradingClient{cc: cc}
}

// Call invokes method with req and returns the response message.
func (c *GradingClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
