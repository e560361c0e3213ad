package registry

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec 注册记录的编解码
type Codec interface {
	Marshal(svc *Service) ([]byte, error)
	Unmarshal(data []byte, svc *Service) error
	Name() string
}

// JSONCodec go-micro 默认的 JSON 编码
func JSONCodec() Codec { return jsonCodec{} }

// MsgpackCodec MessagePack 编码，字段名沿用 json 标签
func MsgpackCodec() Codec { return msgpackCodec{} }

type jsonCodec struct{}

func (jsonCodec) Marshal(svc *Service) ([]byte, error) { return json.Marshal(svc) }

func (jsonCodec) Unmarshal(data []byte, svc *Service) error { return json.Unmarshal(data, svc) }

func (jsonCodec) Name() string { return "json" }

type msgpackCodec struct{}

func (msgpackCodec) Marshal(svc *Service) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(svc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, svc *Service) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(svc)
}

func (msgpackCodec) Name() string { return "msgpack" }
