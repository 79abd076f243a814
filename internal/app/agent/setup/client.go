package setup

import (
	"fmt"

	"neofleet/internal/config"
	"neofleet/internal/pkg/communication"
)

// SetupClient 初始化与 Master 的通信客户端
func SetupClient(cfg *config.Config) (*ClientModule, error) {
	client, err := communication.NewClientFromConfig(cfg.Master, cfg.Agent.Token)
	if err != nil {
		return nil, fmt.Errorf("init master client: %w", err)
	}
	return &ClientModule{
		Holder: communication.NewHolder(client),
	}, nil
}
