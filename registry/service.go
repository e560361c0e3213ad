package registry

// Service go-micro 注册记录，键为 {namespace}/{name}/{node id}
//
// 服务发现只关心 Name 与 Nodes，其余字段原样保留。
type Service struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Metadata  Metadata    `json:"metadata"`
	Endpoints []*Endpoint `json:"endpoints"`
	Nodes     []*Node     `json:"nodes"`
}

// Node 服务实例
type Node struct {
	ID       string   `json:"id"`
	Address  string   `json:"address"`
	Metadata Metadata `json:"metadata"`
}

// Endpoint 服务暴露的方法
type Endpoint struct {
	Name     string   `json:"name"`
	Request  *Value   `json:"request"`
	Response *Value   `json:"response"`
	Metadata Metadata `json:"metadata"`
}

// Value 方法参数的类型描述
type Value struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []*Value `json:"values"`
}

// usableNodes 返回地址非空的节点
func (s *Service) usableNodes() []*Node {
	nodes := make([]*Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if usable(n) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func usable(n *Node) bool {
	return n != nil && n.Address != ""
}
