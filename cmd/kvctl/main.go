// kvctl 通过 etcd v3 JSON 网关（或 clientv3）读写键值，并按 go-micro 约定做一次性服务发现。
//
//	kvctl put /config/a 1
//	kvctl range /config/ /config0
//	kvctl discover go.micro.learning.sum --namespace /micro/registry
package main

import (
	"fmt"
	"os"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if code := xerrors.GetCode(err); code != "" {
			fmt.Fprintf(os.Stderr, "kvctl: [%s] %v\n", code, err)
		} else {
			fmt.Fprintf(os.Stderr, "kvctl: %v\n", err)
		}
		os.Exit(1)
	}
}
