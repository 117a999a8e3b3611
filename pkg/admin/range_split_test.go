package admin

import (
	"context"
	"testing"

	"github.com/nstruharova/accumulo/pkg/client"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/stretchr/testify/require"
)

func TestLocations(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "ts1:9997", "ts2:9997")
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("c", "g", "m")}))

	ranges := []tablet.Range{
		{Start: row("a"), End: row("b")},
		{Start: row("d"), End: row("h")},
	}
	binned, err := c.Locations(ctx, "trades", ranges)
	require.NoError(t, err)
	require.Equal(t, 3, binned.NumTablets())

	var notFound *client.TableNotFoundError
	_, err = c.Locations(ctx, "ghost", ranges)
	require.ErrorAs(t, err, &notFound)
}

func TestLocationsOfflineTable(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	require.NoError(t, c.Offline(ctx, "trades", true))

	var offline *client.TableOfflineError
	_, err := c.Locations(ctx, "trades", []tablet.Range{tablet.EverythingRange()})
	require.ErrorAs(t, err, &offline)
}

func TestSplitRangeByTabletsSingle(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("c", "g")}))

	in := tablet.Range{Start: row("a"), End: row("z")}
	out, err := c.SplitRangeByTablets(ctx, "trades", in, 1)
	require.NoError(t, err)
	require.Equal(t, []tablet.Range{in}, out)

	_, err = c.SplitRangeByTablets(ctx, "trades", in, 0)
	require.Error(t, err)
}

func TestSplitRangeByTabletsPerTablet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("b", "d", "f")}))

	in := tablet.Range{Start: row("a"), End: row("e")}
	out, err := c.SplitRangeByTablets(ctx, "trades", in, 10)
	require.NoError(t, err)
	require.Equal(t, []tablet.Range{
		{Start: row("a"), End: row("b")},
		{Start: row("b"), End: row("d")},
		{Start: row("d"), End: row("e")},
	}, out)
}

func TestSplitRangeByTabletsMergesDown(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("b", "d", "f")}))

	in := tablet.Range{Start: row("a"), End: row("e")}
	out, err := c.SplitRangeByTablets(ctx, "trades", in, 2)
	require.NoError(t, err)
	require.Equal(t, []tablet.Range{
		{Start: row("a"), End: row("d")},
		{Start: row("d"), End: row("e")},
	}, out)
}

func TestSplitRangeByTabletsManyTablets(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{
		SplitRows: rows("b", "c", "d", "e", "f", "g", "h"),
	}))

	in := tablet.EverythingRange()
	for maxSplits := 1; maxSplits <= 10; maxSplits++ {
		out, err := c.SplitRangeByTablets(ctx, "trades", in, maxSplits)
		require.NoError(t, err)
		require.LessOrEqual(t, len(out), maxSplits)

		// The subranges tile the input: consecutive bounds meet exactly.
		require.Nil(t, out[0].Start)
		require.Nil(t, out[len(out)-1].End)
		for i := 1; i < len(out); i++ {
			require.True(t, out[i].Start.Equal(out[i-1].End))
		}
	}
}
