package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供 url/本地路径/请求 ID 字段，供下载流程日志复用。
func FetchFields(action, url, localPath, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"action": action,
		"url":    url,
		"path":   localPath,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
