package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lingo-service/ddd/application/app"
	"lingo-service/ddd/application/cqe"
	"lingo-service/pkg/errno"
	"lingo-service/pkg/logger"
)

// ServiceName 任务服务的全限定名
const ServiceName = "lingo.v1.TaskService"

// TaskServiceServer is the server API for the task service.
type TaskServiceServer interface {
	Submit(ctx context.Context, req *cqe.SubmitTaskCqe) (interface{}, error)
	GetStatus(ctx context.Context, req *cqe.TaskIDCqe) (interface{}, error)
	GetResult(ctx context.Context, req *cqe.TaskIDCqe) (interface{}, error)
	Cancel(ctx context.Context, req *cqe.TaskIDCqe) (interface{}, error)
}

// TaskGrpcServer 任务契约的 gRPC 入口
type TaskGrpcServer struct {
	app app.TaskApp
}

func NewTaskGrpcServer(taskApp app.TaskApp) *TaskGrpcServer {
	return &TaskGrpcServer{app: taskApp}
}

// RegisterTaskServiceServer 注册到 grpc.Server
func RegisterTaskServiceServer(s grpc.ServiceRegistrar, srv TaskServiceServer) {
	s.RegisterService(&TaskServiceDesc, srv)
}

func (s *TaskGrpcServer) Submit(ctx context.Context, req *cqe.SubmitTaskCqe) (interface{}, error) {
	logger.Info("gRPC Submit called", map[string]interface{}{
		"media_ref":       req.MediaRef,
		"target_language": req.TargetLanguage,
		"model_profile":   req.ModelProfile,
	})
	resp, err := s.app.SubmitTask(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *TaskGrpcServer) GetStatus(ctx context.Context, req *cqe.TaskIDCqe) (interface{}, error) {
	resp, err := s.app.GetTaskStatus(ctx, req.TaskID)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *TaskGrpcServer) GetResult(ctx context.Context, req *cqe.TaskIDCqe) (interface{}, error) {
	resp, err := s.app.GetTaskResult(ctx, req.TaskID)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *TaskGrpcServer) Cancel(ctx context.Context, req *cqe.TaskIDCqe) (interface{}, error) {
	resp, err := s.app.CancelTask(ctx, req.TaskID)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

// toStatus 错误码映射为 gRPC 状态码
func toStatus(err error) error {
	var e *errno.Errno
	if !errors.As(err, &e) {
		logger.Errorf("gRPC call failed error=%v", err)
		return status.Error(codes.Internal, "internal error")
	}
	switch {
	case errors.Is(e, errno.ErrTaskNotFound), errors.Is(e, errno.ErrResultExpired):
		return status.Error(codes.NotFound, e.Message)
	case errors.Is(e, errno.ErrResultNotReady):
		return status.Error(codes.FailedPrecondition, e.Message)
	case errors.Is(e, errno.ErrQueueUnavailable):
		return status.Error(codes.Unavailable, e.Message)
	case e.Code >= 20001 && e.Code < 20100:
		return status.Error(codes.InvalidArgument, e.Message)
	}
	return status.Error(codes.Internal, e.Message)
}

func submitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(cqe.SubmitTaskCqe)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaskServiceServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Submit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TaskServiceServer).Submit(ctx, req.(*cqe.SubmitTaskCqe))
	}
	return interceptor(ctx, in, info, handler)
}

// taskIDHandler 三个按任务ID的方法共用同一解码逻辑
func taskIDHandler(method string, call func(TaskServiceServer, context.Context, *cqe.TaskIDCqe) (interface{}, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(cqe.TaskIDCqe)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TaskServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TaskServiceServer), ctx, req.(*cqe.TaskIDCqe))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TaskServiceDesc 手写的服务描述，消息使用 JSON 编码
var TaskServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TaskServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "GetStatus", Handler: taskIDHandler("GetStatus", TaskServiceServer.GetStatus)},
		{MethodName: "GetResult", Handler: taskIDHandler("GetResult", TaskServiceServer.GetResult)},
		{MethodName: "Cancel", Handler: taskIDHandler("Cancel", TaskServiceServer.Cancel)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lingo/v1/task.proto",
}
