// ### 发布流程
// 1. **更新版本号**：修改 `internal/pkg/version/version.go`
// 2. **构建注入**：-ldflags "-X neofleet/internal/pkg/version.GitCommit=... -X neofleet/internal/pkg/version.BuildTime=..."
// 3. **推送代码和 Tag**：推送到远程仓库
// 4. **验证构建**：Master 通过 GET_CURRENT_AGENT_BUNDLE 核对各 Agent 版本

package version

import (
	"fmt"
	"runtime"
)

var (
	Version    = "1.4.0" // 版本号 -- 发布时候更新版本号
	APIVersion = "1.0"
	BuildTime  string
	GitCommit  string
	GoVersion  = runtime.Version()
)

// Info 版本包信息
type Info struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	GitCommit  string `json:"git_commit"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

func GetVersion() string {
	return Version
}

// GetInfo 当前进程的版本包
func GetInfo() Info {
	return Info{
		Version:    Version,
		APIVersion: APIVersion,
		GitCommit:  GitCommit,
		BuildTime:  BuildTime,
		GoVersion:  GoVersion,
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func GetFullVersion() string {
	if GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}

func GetUserAgent() string {
	return "NeoFleet-Agent/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
