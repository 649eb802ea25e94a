package buildinfo

// Version 在 Release 构建时通过 -ldflags 注入，例如：
// -X github.com/mindbloom/mindbloom/internal/pkg/buildinfo.Version=v1.0.0
var Version = "v1.0.0-dev"

// Commit 在 Release 构建时可选注入 git commit，例如：
// -X github.com/mindbloom/mindbloom/internal/pkg/buildinfo.Commit=abcdef1
var Commit = "unknown"

// String 版本号与提交，用于 version 命令与健康检查
func String() string {
	if Commit == "" || Commit == "unknown" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
