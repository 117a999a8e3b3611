package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/nstruharova/accumulo/pkg/admin"
	"github.com/nstruharova/accumulo/pkg/client"
	"github.com/nstruharova/accumulo/pkg/locator"
	"github.com/nstruharova/accumulo/pkg/rpc/rpctest"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/olekukonko/tablewriter"
)

func row(s string) tablet.Row {
	if s == "" {
		return nil
	}
	return tablet.Row(s)
}

// runDemo walks through the structural operations against a fresh
// in-process cluster: create, split, locate, merge, state changes,
// clone, export/import, rename and delete.
func runDemo(ctx context.Context, cfg client.Config) error {
	cluster := rpctest.NewCluster("ts1:9997", "ts2:9997", "ts3:9997")
	cc := client.NewContext(cfg, cluster, cluster, cluster)
	ops := admin.New(cc)

	fmt.Println("== create trades with initial splits")
	err := ops.Create(ctx, "trades", admin.CreateConfig{
		SplitRows: []tablet.Row{row("g"), row("p")},
		Props:     map[string]string{"table.file.compress.type": "snappy"},
		TimeType:  admin.TimeTypeLogical,
	})
	if err != nil {
		return err
	}
	if err := printTables(ctx, ops); err != nil {
		return err
	}

	fmt.Println("== add split points")
	splits := []tablet.Row{row("c"), row("j"), row("t"), row("w")}
	if err := ops.AddSplits(ctx, "trades", splits); err != nil {
		return err
	}
	if err := printSplits(ctx, ops, "trades"); err != nil {
		return err
	}

	fmt.Println("== locate ranges")
	binned, err := ops.Locations(ctx, "trades", []tablet.Range{
		{Start: row("a"), End: row("e")},
		{Start: row("h"), End: row("v")},
	})
	if err != nil {
		return err
	}
	printBinning(binned)

	fmt.Println("== split a range along tablet boundaries (max 3)")
	subranges, err := ops.SplitRangeByTablets(ctx, "trades",
		tablet.Range{Start: row("a"), End: row("v")}, 3)
	if err != nil {
		return err
	}
	for _, r := range subranges {
		fmt.Printf("  %s\n", r)
	}

	fmt.Println("== merge (c, t]")
	if err := ops.Merge(ctx, "trades", row("c"), row("t")); err != nil {
		return err
	}
	if err := printSplits(ctx, ops, "trades"); err != nil {
		return err
	}

	fmt.Println("== flush, then clone without the compression override")
	if err := ops.Flush(ctx, "trades", nil, nil, true); err != nil {
		return err
	}
	err = ops.Clone(ctx, "trades", "trades_backup", admin.CloneConfig{
		PropsToExclude: []string{"table.file.compress.type"},
	})
	if err != nil {
		return err
	}

	fmt.Println("== take trades offline and export it")
	if err := ops.Offline(ctx, "trades", true); err != nil {
		return err
	}
	if err := ops.Export(ctx, "trades", "/tmp/trades-export"); err != nil {
		return err
	}
	if err := ops.Online(ctx, "trades", true); err != nil {
		return err
	}

	fmt.Println("== import into a new table, rename the backup")
	if err := ops.Import(ctx, "trades_restored", "/tmp/trades-export"); err != nil {
		return err
	}
	if err := ops.Rename(ctx, "trades_backup", "trades_archive"); err != nil {
		return err
	}
	if err := printTables(ctx, ops); err != nil {
		return err
	}

	fmt.Println("== delete trades_restored")
	if err := ops.Delete(ctx, "trades_restored"); err != nil {
		return err
	}
	return printTables(ctx, ops)
}

func printTables(ctx context.Context, ops *admin.Client) error {
	m, err := ops.TableIDMap(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"table", "id", "online", "splits"})
	for _, name := range names {
		online, err := ops.IsOnline(ctx, name)
		if err != nil {
			return err
		}
		splits, err := ops.ListSplits(ctx, name)
		if err != nil {
			return err
		}
		tw.Append([]string{
			name,
			string(m[name]),
			fmt.Sprint(online),
			fmt.Sprint(len(splits)),
		})
	}
	tw.Render()
	return nil
}

func printSplits(ctx context.Context, ops *admin.Client, tableName string) error {
	splits, err := ops.ListSplits(ctx, tableName)
	if err != nil {
		return err
	}
	for _, s := range splits {
		fmt.Printf("  %s\n", s)
	}
	return nil
}

func printBinning(binned locator.Binning) {
	servers := make([]string, 0, len(binned))
	for server := range binned {
		servers = append(servers, server)
	}
	sort.Strings(servers)

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"server", "tablet", "ranges"})
	for _, server := range servers {
		for _, tr := range binned[server] {
			tw.Append([]string{server, tr.Extent.String(), fmt.Sprint(len(tr.Ranges))})
		}
	}
	tw.Render()
}
