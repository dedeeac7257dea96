package cli

import (
	"github.com/spf13/cobra"

	"GoTM1Monitor/internal/audit"
	"GoTM1Monitor/internal/model"
)

func newUsersCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "列出活动用户",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				users, err := r.monitor.GetActiveUsers(r.ctx, nil)
				if err != nil {
					return err
				}
				return r.printer.users(users)
			})
		},
	}
}

func newUserActiveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "user-active <name>",
		Short: "检查用户是否在线",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				active, err := r.monitor.UserIsActive(r.ctx, args[0], nil)
				if err != nil {
					return err
				}
				return r.printer.value(active)
			})
		},
	}
}

func newDisconnectUserCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect-user <name>",
		Short: "报告用户是否在线（不会断开连接，断开请用 disconnect-all-users）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				active, err := r.monitor.DisconnectUser(r.ctx, args[0], nil)
				if err != nil {
					return err
				}
				return r.printer.value(active)
			})
		},
	}
}

func newDisconnectAllUsersCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect-all-users",
		Short: "断开除自己以外的所有用户（需要管理员权限）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				names, err := r.monitor.DisconnectAllUsers(r.ctx, nil)
				for _, name := range names {
					r.record(audit.ActionDisconnectUser, name)
				}
				if names != nil {
					if perr := r.printer.names("Name", names); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}
}

func newWhoAmICmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "显示当前登录的用户",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(r *runtime) error {
				me, err := r.monitor.GetCurrentUser(r.ctx, nil)
				if err != nil {
					return err
				}
				return r.printer.users([]model.User{*me})
			})
		},
	}
}
