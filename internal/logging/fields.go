package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供方法/路径/请求 ID/状态码以及是否写入静态快照等字段，供代理请求日志复用。
func RequestFields(method, path, requestID string, status int, cacheStore bool) logrus.Fields {
	fields := logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"cache_store": cacheStore,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
