package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（导出已完成，但结果需要用户留意）
// - 5xxx：系统错误（导出失败）
const (
	OK              = 0
	ResourceMissing = 4004
	PageOverflow    = 4013
	SystemError     = 5000
)

var messages = map[int]string{
	ResourceMissing: "部分图片资源缺失，已跳过并继续生成",
	PageOverflow:    "部分页面内容超出页面高度，建议拆分或移动组件",
	SystemError:     "导出失败，请稍后重试",
}

// Message 返回错误码对应的默认提示；OK 与未知错误码返回空字符串。
func Message(code int) string {
	return messages[code]
}

// IsWarning 报告错误码是否属于可继续的告警类。
func IsWarning(code int) bool {
	return code >= 4000 && code < 5000
}
