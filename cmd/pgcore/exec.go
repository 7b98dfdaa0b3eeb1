package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oriys/pgcore/internal/eventloop"
	"github.com/oriys/pgcore/internal/logging"
	"github.com/oriys/pgcore/internal/observability"
	"github.com/oriys/pgcore/postgres"
	"github.com/spf13/cobra"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect and report the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Database.ConnectTimeout)
			defer cancel()

			start := time.Now()
			conn := postgres.New()
			defer conn.Close()
			if err := conn.Connect(ctx, cfg.Database.DSN); err != nil {
				return err
			}
			res, err := conn.Query(ctx, "SELECT version()")
			if err != nil {
				return err
			}
			v, err := postgres.Get[string](res, 0)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok in %s\n%s\n", time.Since(start).Round(time.Millisecond), v)
			return nil
		},
	}
}

func execCmd() *cobra.Command {
	var (
		params      []string
		async       bool
		timeout     time.Duration
		traceParent string
	)

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute a statement and print its results",
		Long: `Execute a statement and print every result set it returns.

Parameters are given as type:value, for example --param int4:42 or
--param timestamptz:2014-11-01T09:14:00Z. Supported types: text, int2, int4,
int8, float4, float8, bool, char, bytea (hex), date, timestamp, timestamptz,
time, interval (Go duration) and null.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql := args[0]
			bound := make([]any, 0, len(params))
			for _, p := range params {
				v, err := parseParam(p)
				if err != nil {
					return err
				}
				bound = append(bound, v)
			}

			ctx := cmd.Context()
			if traceParent != "" {
				joined, err := observability.JoinTrace(ctx, traceParent)
				if err != nil {
					return err
				}
				ctx = joined
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			ctx, span := observability.StartSpan(ctx, "pgcore.cli.exec")
			defer span.End()
			if tp := observability.TraceParent(ctx); tp != "" {
				logging.Op().Debug("exec traced", "traceparent", tp)
			}

			var err error
			if async || cfg.Database.Async {
				err = execAsync(ctx, cmd.OutOrStdout(), sql, bound)
			} else {
				err = execSync(ctx, cmd.OutOrStdout(), sql, bound)
			}
			if err != nil {
				observability.SetSpanError(span, err)
				return err
			}
			observability.SetSpanOK(span)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Statement parameter as type:value (repeatable, bound to $1, $2, ...)")
	cmd.Flags().BoolVar(&async, "async", false, "Drive the connection through the event loop")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall deadline for connect and execute")
	cmd.Flags().StringVar(&traceParent, "traceparent", "", "W3C traceparent to join an existing trace")

	return cmd
}

func execSync(ctx context.Context, out io.Writer, sql string, args []any) error {
	conn := postgres.New()
	defer conn.Close()
	if err := conn.Connect(ctx, cfg.Database.DSN); err != nil {
		return err
	}

	res, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	for {
		if err := printResult(out, res); err != nil {
			return err
		}
		if !res.NextResult() {
			break
		}
		fmt.Fprintln(out)
	}
	return res.Err()
}

// printResult writes the current result set as a table, or the command tag
// when the statement returned no rows.
func printResult(out io.Writer, res *postgres.Result) error {
	cols := res.Columns()
	if len(cols) == 0 {
		fmt.Fprintln(out, res.CommandTag())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, columnHeader(res))

	for row := range res.Rows() {
		cells := make([]string, len(cols))
		for i := range cols {
			v, err := row.Value(i)
			if err != nil {
				return err
			}
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	fmt.Fprintf(out, "(%d rows)\n", res.Count())
	return nil
}

func columnHeader(res *postgres.Result) string {
	names := make([]string, len(res.Columns()))
	for i, c := range res.Columns() {
		names[i] = strings.ToUpper(c.Name)
	}
	return strings.Join(names, "\t")
}

func execAsync(ctx context.Context, out io.Writer, sql string, args []any) error {
	conn := postgres.New()
	defer conn.Close()
	if err := conn.ConnectAsync(ctx, cfg.Database.DSN); err != nil {
		return err
	}

	var cbErr error
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	conn.Each(func(res *postgres.Result) bool {
		if res.Row().Index() == 0 {
			fmt.Fprintln(w, columnHeader(res))
		}
		cells := make([]string, len(res.Columns()))
		for i := range cells {
			v, err := res.Value(i)
			if err != nil {
				cbErr = err
				return false
			}
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
		return true
	}).Done(func(count int) {
		w.Flush()
		fmt.Fprintf(out, "(%d rows)\n", count)
	}).Error(func(err error) {
		cbErr = err
	}).Always(func() {
		w.Flush()
	})

	if err := conn.Execute(ctx, sql, args...); err != nil {
		return err
	}
	if err := eventloop.Run(ctx, conn); err != nil {
		conn.Cancel(context.Background())
		return err
	}
	return cbErr
}
