package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/status-agent/status-agent/internal/logging"
	"github.com/status-agent/status-agent/internal/notify"
	"github.com/status-agent/status-agent/internal/status"
)

// refreshOnce 执行一次强制回源并写穿缓存。不透明正文照常入库，
// 但返回的记录为 nil（没有可广播的数据）。
func (a *Agent) refreshOnce(ctx context.Context) (*status.Record, error) {
	fetchedResp, err := a.fetchStatus(ctx)
	if err != nil {
		return nil, err
	}

	a.storeBody(ctx, fetchedResp.body, fetchedResp.contentType)

	if rec, decodeErr := status.Decode(fetchedResp.body); decodeErr == nil {
		return &rec, nil
	}
	return nil, nil
}

// ExplicitRefresh 响应页面的 UPDATE_STATUS 控制消息：单次回源写缓存，
// 向请求方返回 UPDATE_COMPLETE 回执，并向所有页面广播结果。保证不抛出。
func (a *Agent) ExplicitRefresh(ctx context.Context) (reply notify.Message) {
	defer func() {
		if r := recover(); r != nil {
			fields := logging.TriggerFields("refresh", a.cfg.CacheName, a.cfg.Strategy)
			fields["error"] = fmt.Sprintf("panic: %v", r)
			a.logger.WithFields(fields).Error("refresh_panic")
			reply = notify.Complete(false, nil, a.now(), fmt.Sprintf("panic: %v", r))
		}
	}()

	fields := logging.TriggerFields("refresh", a.cfg.CacheName, a.cfg.Strategy)

	rec, err := a.refreshOnce(ctx)
	now := a.now()
	if err != nil {
		fields["error"] = err.Error()
		a.logger.WithFields(fields).Warn("refresh_failed")

		failure := notify.Complete(false, nil, now, err.Error())
		a.hub.Broadcast(failure)
		return failure
	}

	a.logger.WithFields(fields).Info("refresh_complete")
	a.hub.Broadcast(notify.Updated(rec, now))
	return notify.Complete(true, rec, now, "")
}

// RunPeriodic 在固定间隔上重复刷新缓存，成功时广播 BACKGROUND_UPDATE，
// 失败只记日志。RefreshInterval 为 0 时该能力关闭。
func (a *Agent) RunPeriodic(ctx context.Context) {
	interval := a.cfg.RefreshInterval.DurationValue()
	fields := logging.TriggerFields("periodic", a.cfg.CacheName, a.cfg.Strategy)

	if interval <= 0 {
		a.logger.WithFields(fields).Debug("periodic_disabled")
		return
	}

	fields["interval"] = interval.String()
	a.logger.WithFields(fields).Info("periodic_started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.WithFields(logging.TriggerFields("periodic", a.cfg.CacheName, a.cfg.Strategy)).
				Info("periodic_stopped")
			return
		case <-ticker.C:
			rec, err := a.refreshOnce(ctx)
			if err != nil {
				tickFields := logging.TriggerFields("periodic", a.cfg.CacheName, a.cfg.Strategy)
				tickFields["error"] = err.Error()
				a.logger.WithFields(tickFields).Warn("periodic_refresh_failed")
				continue
			}
			a.hub.Broadcast(notify.Background(true, rec, a.now(), ""))
		}
	}
}
