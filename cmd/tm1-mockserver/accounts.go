package main

import (
	"log"

	"GoTM1Monitor/internal/config"
	"GoTM1Monitor/internal/testserver"
)

// syncAccounts 让配置文件中每个实例的登录账号都能通过模拟服务器认证
func syncAccounts(state *testserver.State, cfg *config.Config) int {
	n := 0
	for _, name := range cfg.InstanceNames() {
		inst := cfg.Instances[name]
		if inst.User == "" {
			continue
		}
		state.SetAccount(inst.User, inst.Password)
		n++
	}
	return n
}

// watchAccounts 加载配置并在文件变化时重新同步账号
func watchAccounts(state *testserver.State, path string) (*config.Manager, error) {
	m := config.NewManager(
		config.WithConfigPath(path),
		config.WithWatchEnabled(true),
		config.WithOnChange(func(cfg *config.Config) {
			log.Printf("Synced %d accounts from reloaded config", syncAccounts(state, cfg))
		}),
	)
	cfg, err := m.Load()
	if err != nil {
		return nil, err
	}
	log.Printf("Synced %d accounts from %s", syncAccounts(state, cfg), path)
	return m, nil
}
