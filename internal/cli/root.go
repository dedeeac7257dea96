package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"GoTM1Monitor/internal/audit"
	"GoTM1Monitor/internal/logger"
)

// 输出格式
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// options 全局参数和可注入的依赖
type options struct {
	configPath string
	instance   string
	output     string
	logFile    string
	timeout    time.Duration

	// recorder 非nil时替代配置中的审计存储
	recorder audit.Recorder
}

// Option 定制根命令，测试中用于注入依赖
type Option func(*options)

// WithRecorder 使用指定的审计记录器
func WithRecorder(r audit.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// NewRootCmd 创建根命令
func NewRootCmd(opts ...Option) *cobra.Command {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	root := &cobra.Command{
		Use:   "tm1monitor",
		Short: "TM1 服务器线程、用户和会话监控工具",
		Long: `tm1monitor 通过 TM1 REST API 查看和管理服务器上的线程、活动用户和会话。

关闭会话和断开所有用户需要管理员权限。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			switch o.output {
			case OutputTable, OutputJSON, OutputYAML:
			default:
				return fmt.Errorf("unsupported output format %q (table, json, yaml)", o.output)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "配置文件路径（默认搜索 ./configs/tm1monitor.yaml）")
	flags.StringVarP(&o.instance, "instance", "i", "", "TM1实例名称（默认使用 default_instance）")
	flags.StringVarP(&o.output, "output", "o", OutputTable, "输出格式: table, json, yaml")
	flags.StringVarP(&o.logFile, "log-file", "l", "", "日志文件路径（覆盖配置）")
	flags.DurationVar(&o.timeout, "timeout", 0, "整个命令的超时时间，0表示不限制")

	root.AddCommand(
		newThreadsCmd(o),
		newCancelThreadCmd(o),
		newCancelAllThreadsCmd(o),
		newSessionThreadsCmd(o),
		newUsersCmd(o),
		newUserActiveCmd(o),
		newDisconnectUserCmd(o),
		newDisconnectAllUsersCmd(o),
		newWhoAmICmd(o),
		newSessionsCmd(o),
		newCloseSessionCmd(o),
		newCloseAllSessionsCmd(o),
		newAuditLogCmd(o),
	)
	return root
}

// Execute 执行根命令
func Execute() error {
	return ExecuteArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs 使用指定参数和输出执行根命令
func ExecuteArgs(args []string, stdout, stderr io.Writer, opts ...Option) error {
	root := NewRootCmd(opts...)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}
