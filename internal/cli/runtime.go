package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"GoTM1Monitor/internal/audit"
	"GoTM1Monitor/internal/config"
	"GoTM1Monitor/internal/logger"
	"GoTM1Monitor/internal/rest"
	"GoTM1Monitor/internal/service"
)

// runtime 一次命令执行所需的连接和依赖
type runtime struct {
	ctx      context.Context
	cancel   context.CancelFunc
	instance *config.Instance
	rest     *rest.Service
	monitor  *service.MonitoringService
	recorder audit.Recorder
	printer  *printer

	closeRecorder func()
}

// loadConfig 加载配置并按配置初始化日志
func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.NewManager(config.WithConfigPath(o.configPath)).Get()
	if err != nil {
		return nil, err
	}

	logFile := cfg.Logging.File
	if o.logFile != "" {
		logFile = o.logFile
	}
	logger.InitLogger(logger.Options{
		Console:    cfg.Logging.Console,
		File:       logFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	return cfg, nil
}

// commandContext 按--timeout创建命令的上下文
func commandContext(cmd *cobra.Command, o *options) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// openRecorder 按配置打开审计存储，未启用时返回Nop
func openRecorder(ctx context.Context, o *options, cfg *config.Config) (audit.Recorder, func(), error) {
	if o.recorder != nil {
		return o.recorder, func() {}, nil
	}
	if !cfg.Audit.Enabled {
		return audit.Nop{}, func() {}, nil
	}

	store, err := audit.Connect(ctx, cfg.Audit.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// open 加载配置、连接TM1实例并创建监控服务
func open(cmd *cobra.Command, o *options) (*runtime, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	inst, err := cfg.Instance(o.instance)
	if err != nil {
		return nil, err
	}

	ctx, cancel := commandContext(cmd, o)

	svc, err := rest.New(inst.RestConfig())
	if err != nil {
		cancel()
		return nil, err
	}
	if err := svc.Connect(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("connect to instance %s: %w", inst.Name, err)
	}

	recorder, closeRecorder, err := openRecorder(ctx, o, cfg)
	if err != nil {
		if logoutErr := svc.Logout(ctx); logoutErr != nil {
			log.Printf("Logout from %s failed: %v", inst.Name, logoutErr)
		}
		cancel()
		return nil, err
	}

	return &runtime{
		ctx:           ctx,
		cancel:        cancel,
		instance:      inst,
		rest:          svc,
		monitor:       service.NewMonitoringService(svc, svc),
		recorder:      recorder,
		printer:       newPrinter(cmd.OutOrStdout(), o.output),
		closeRecorder: closeRecorder,
	}, nil
}

// close 注销会话并释放资源
func (r *runtime) close() {
	if err := r.rest.Logout(context.Background()); err != nil {
		log.Printf("Logout from %s failed: %v", r.instance.Name, err)
	}
	r.closeRecorder()
	r.cancel()
}

// record 记录一次审计事件，失败只写日志
func (r *runtime) record(action, target string) {
	actor := ""
	if me, err := r.rest.CurrentUser(); err == nil {
		actor = me.Name
	}
	event := audit.Event{
		Action:   action,
		Target:   target,
		Actor:    actor,
		Instance: r.instance.Name,
		At:       time.Now(),
	}
	if err := r.recorder.Record(r.ctx, event); err != nil {
		log.Printf("Record audit event %s %s failed: %v", action, target, err)
	}
}

// run 打开连接执行fn，结束后关闭连接
func run(cmd *cobra.Command, o *options, fn func(r *runtime) error) error {
	r, err := open(cmd, o)
	if err != nil {
		return err
	}
	defer r.close()
	return fn(r)
}
