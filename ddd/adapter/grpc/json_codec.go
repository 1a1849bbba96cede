package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName 客户端通过 grpc.CallContentSubtype(CodecName) 选择该编码
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec 让任务服务直接复用应用层的请求和响应结构，无需生成的 protobuf 类型
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
