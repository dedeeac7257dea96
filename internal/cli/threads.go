package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"GoTM1Monitor/internal/audit"
)

var threadColumns = []string{"ID", "Type", "Name", "Context", "State", "Function", "ObjectType", "ObjectName", "ElapsedTime"}

func newThreadsCmd(o *options) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "列出服务器上的线程",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				get := r.monitor.GetThreads
				if active {
					get = r.monitor.GetActiveThreads
				}
				threads, err := get(r.ctx, nil)
				if err != nil {
					return err
				}
				return r.printer.records(threads, threadColumns...)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "只显示非空闲线程")
	return cmd
}

func newSessionThreadsCmd(o *options) *cobra.Command {
	var includeIdle bool
	cmd := &cobra.Command{
		Use:   "session-threads",
		Short: "列出当前会话的线程（不含查询本身）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				threads, err := r.monitor.GetActiveSessionThreads(r.ctx, !includeIdle, nil)
				if err != nil {
					return err
				}
				return r.printer.records(threads, threadColumns...)
			})
		},
	}
	cmd.Flags().BoolVar(&includeIdle, "include-idle", false, "包含空闲线程")
	return cmd
}

func newCancelThreadCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-thread <id>",
		Short: "取消一个线程",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid thread id %q: %w", args[0], err)
			}
			return run(cmd, o, func(r *runtime) error {
				if _, err := r.monitor.CancelThread(r.ctx, id, nil); err != nil {
					return err
				}
				r.record(audit.ActionCancelThread, args[0])
				return r.printer.value(map[string]interface{}{"cancelled": id})
			})
		},
	}
}

func newCancelAllThreadsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-all-threads",
		Short: "取消所有运行中的用户线程",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				cancelled, err := r.monitor.CancelAllRunningThreads(r.ctx, nil)
				for _, th := range cancelled {
					id, _ := th.ID()
					r.record(audit.ActionCancelThread, id)
				}
				if cancelled != nil {
					if perr := r.printer.records(cancelled, threadColumns...); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}
}
