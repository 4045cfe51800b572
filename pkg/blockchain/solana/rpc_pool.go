package solana

import (
	"sync"

	"github.com/gagliardetto/solana-go/rpc"
)

// RPCPool rotates requests across a set of upstream RPC endpoints.
type RPCPool struct {
	clients []*rpc.Client
	mutex   sync.Mutex
	index   int
}

func NewRPCPool(rpcList []string) *RPCPool {
	clients := make([]*rpc.Client, 0, len(rpcList))
	for _, url := range rpcList {
		clients = append(clients, rpc.New(url))
	}

	return &RPCPool{clients: clients}
}

// GetClient returns the next endpoint in round-robin order.
func (p *RPCPool) GetClient() *rpc.Client {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}

func (p *RPCPool) Size() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.clients)
}
