package agent

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/status-agent/status-agent/internal/logging"
	"github.com/status-agent/status-agent/internal/notify"
	"github.com/status-agent/status-agent/internal/status"
)

// Activate 清理被取代的缓存代并接管已连接的页面。删除并行执行且尽力而为：
// 单个旧代删除失败不阻塞其余删除，也不阻塞接管步骤。
func (a *Agent) Activate(ctx context.Context) {
	fields := logging.TriggerFields("activate", a.cfg.CacheName, a.cfg.Strategy)

	generations, err := a.store.Generations(ctx)
	if err != nil {
		fields["error"] = err.Error()
		a.logger.WithFields(fields).Warn("activate_enumerate_failed")
		generations = nil
	}

	var purged atomic.Int64
	var wg sync.WaitGroup
	for _, name := range generations {
		if name == a.cfg.CacheName {
			continue
		}
		wg.Add(1)
		go func(stale string) {
			defer wg.Done()
			if err := a.store.DropGeneration(ctx, stale); err != nil {
				dropFields := logging.TriggerFields("activate", a.cfg.CacheName, a.cfg.Strategy)
				dropFields["stale_generation"] = stale
				dropFields["error"] = err.Error()
				a.logger.WithFields(dropFields).Warn("activate_drop_failed")
				return
			}
			purged.Add(1)
		}(name)
	}
	wg.Wait()

	// 接管页面：把当前缓存的记录广播出去，已打开的页面无需刷新即可同步到新代。
	if cached := a.readCached(ctx); cached != nil {
		if rec, decodeErr := status.Decode(cached.body); decodeErr == nil {
			a.hub.Broadcast(notify.Updated(&rec, a.now()))
		}
	}

	fields["purged"] = purged.Load()
	fields["pages"] = a.hub.Count()
	a.logger.WithFields(fields).Info("activate_complete")
}
