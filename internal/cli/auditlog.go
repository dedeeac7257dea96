package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"GoTM1Monitor/internal/audit"
)

func newAuditLogCmd(o *options) *cobra.Command {
	var (
		limit int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "audit-log",
		Short: "显示审计记录（需要在配置中启用 audit）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit is not enabled in the configuration")
			}

			instance := ""
			if !all {
				inst, err := cfg.Instance(o.instance)
				if err != nil {
					return err
				}
				instance = inst.Name
			}

			ctx, cancel := commandContext(cmd, o)
			defer cancel()

			store, err := audit.Connect(ctx, cfg.Audit.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Recent(ctx, instance, limit)
			if err != nil {
				return err
			}
			return printEvents(newPrinter(cmd.OutOrStdout(), o.output), events)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "最多显示的记录数")
	cmd.Flags().BoolVar(&all, "all", false, "显示所有实例的记录")
	return cmd
}

func printEvents(p *printer, events []audit.Event) error {
	if ok, err := p.structured(events); ok {
		return err
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{e.At.Local().Format(time.DateTime), e.Instance, e.Actor, e.Action, e.Target})
	}
	return p.table([]string{"At", "Instance", "Actor", "Action", "Target"}, rows)
}
