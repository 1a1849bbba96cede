package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// NodeInfo is the value stored under the node key, read by front ends that route
// submissions to a live node.
type NodeInfo struct {
	ServiceID string `json:"service_id"`
	HTTPAddr  string `json:"http_addr"`
	GRPCAddr  string `json:"grpc_addr,omitempty"`
	WorkerID  string `json:"worker_id"`
	PoolSize  int    `json:"pool_size"`
	StartedAt int64  `json:"started_at"`
}

// ServiceRegistry registers services into etcd.
type ServiceRegistry struct {
	client      *clientv3.Client
	serviceName string
	serviceID   string
	ttl         int64
	leaseID     clientv3.LeaseID
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServiceRegistry creates a new ServiceRegistry instance.
func NewServiceRegistry(cfg config.ServiceRegistryConfig) (*ServiceRegistry, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("service registry enabled without etcd endpoints")
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ttl := int64(cfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 30
	}
	return &ServiceRegistry{
		client:      client,
		serviceName: cfg.ServiceName,
		serviceID:   cfg.ServiceID,
		ttl:         ttl,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Key returns the etcd key of this node.
func (r *ServiceRegistry) Key() string {
	return fmt.Sprintf("/services/%s/%s", r.serviceName, r.serviceID)
}

// Register registers service instance.
func (r *ServiceRegistry) Register(info NodeInfo) error {
	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	info.ServiceID = r.serviceID
	value, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if _, err := r.client.Put(r.ctx, r.Key(), string(value), clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	go r.keepAlive()

	logger.Infof("Service registered key=%s http=%s pool_size=%d", r.Key(), info.HTTPAddr, info.PoolSize)
	return nil
}

func (r *ServiceRegistry) keepAlive() {
	ch, err := r.client.KeepAlive(r.ctx, r.leaseID)
	if err != nil {
		logger.Warnf("Failed to keep alive lease error=%v", err)
		return
	}
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka := <-ch:
			if ka == nil {
				logger.Warnf("Keep alive channel closed key=%s", r.Key())
				return
			}
		}
	}
}

// Deregister removes service registration.
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	if r.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			logger.Warnf("Failed to revoke lease error=%v", err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("Service deregistered id=%s", r.serviceID)
	return nil
}
