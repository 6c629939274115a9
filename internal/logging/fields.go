package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// TriggerFields 提供触发类型/缓存代/策略字段，供 agent 各触发器日志复用。
func TriggerFields(trigger, generation, strategy string) logrus.Fields {
	return logrus.Fields{
		"trigger":    trigger,
		"generation": generation,
		"strategy":   strategy,
	}
}

// InterceptFields 在 TriggerFields 之上补充来源与命中信息，供拦截路径使用。
func InterceptFields(generation, strategy, source string, cacheHit bool) logrus.Fields {
	fields := TriggerFields("intercept", generation, strategy)
	fields["source"] = source
	fields["cache_hit"] = cacheHit
	return fields
}
