package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Metadata 注册记录中的附加信息
//
// 其他语言写入的记录里值不一定是字符串，例如 {"weight":10,"secure":true}。
// 解码时非字符串值保留其 JSON 文本（"10"、"true"），null 记为空串；
// 整个字段不是对象时视为没有 metadata，不影响节点本身。
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		*m = nil
		return nil
	}
	md := make(Metadata, len(raw))
	for k, v := range raw {
		md[k] = metadataText(v)
	}
	*m = md
	return nil
}

func metadataText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

var _ msgpack.CustomDecoder = (*Metadata)(nil)

// DecodeMsgpack 与 JSON 相同的宽松规则
func (m *Metadata) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	raw, ok := v.(map[string]any)
	if !ok {
		*m = nil
		return nil
	}
	md := make(Metadata, len(raw))
	for k, val := range raw {
		switch x := val.(type) {
		case string:
			md[k] = x
		case nil:
			md[k] = ""
		default:
			b, err := json.Marshal(x)
			if err != nil {
				md[k] = fmt.Sprint(x)
				continue
			}
			md[k] = string(b)
		}
	}
	*m = md
	return nil
}
