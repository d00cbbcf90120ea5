package notify

import (
	"sync"

	"github.com/khaledhikmat/vs-erase/service/config"
)

type fakeService struct {
	CfgSvc config.IService
	mu     sync.Mutex
	posted []map[string]interface{}
}

// NewFake records payloads in memory. Posted returns them in order.
func NewFake(cfgsvc config.IService) IService {
	return &fakeService{
		CfgSvc: cfgsvc,
	}
}

func (svc *fakeService) Post(payload map[string]interface{}) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.posted = append(svc.posted, payload)
	return nil
}

// Posted lists what a fake service received. Other services yield nil.
func Posted(svc IService) []map[string]interface{} {
	f, ok := svc.(*fakeService)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}{}, f.posted...)
}
