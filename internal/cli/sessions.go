package cli

import (
	"github.com/spf13/cobra"

	"GoTM1Monitor/internal/audit"
	"GoTM1Monitor/internal/service"
)

var sessionColumns = []string{"ID", "Context", "Active", "User.Name", "Threads"}

func newSessionsCmd(o *options) *cobra.Command {
	var query service.SessionQuery
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "列出服务器上的会话",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				sessions, err := r.monitor.GetSessions(r.ctx, query, nil)
				if err != nil {
					return err
				}
				return r.printer.records(sessions, sessionColumns...)
			})
		},
	}
	cmd.Flags().BoolVar(&query.IncludeUser, "user", true, "展开会话的用户")
	cmd.Flags().BoolVar(&query.IncludeThreads, "threads", true, "展开会话的线程")
	return cmd
}

func newCloseSessionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "close-session <id>",
		Short: "关闭一个会话",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				if _, err := r.monitor.CloseSession(r.ctx, args[0], nil); err != nil {
					return err
				}
				r.record(audit.ActionCloseSession, args[0])
				return r.printer.value(map[string]interface{}{"closed": args[0]})
			})
		},
	}
}

func newCloseAllSessionsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "close-all-sessions",
		Short: "关闭除自己以外的所有会话（需要管理员权限）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				closed, err := r.monitor.CloseAllSessions(r.ctx, nil)
				for _, s := range closed {
					id, _ := s.ID()
					r.record(audit.ActionCloseSession, id)
				}
				if closed != nil {
					if perr := r.printer.records(closed, sessionColumns...); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}
}
