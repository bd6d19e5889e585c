package collector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/model"
	"github.com/indicador-preditivo/preditor/internal/storage"
)

// fakeSource serves candles from a fixed in-memory series, paging like the
// gateway: the `count` newest candles at or before `to`.
type fakeSource struct {
	candles []model.Candle
	calls   int
}

func (f *fakeSource) GetCandles(_ context.Context, _ string, _ int, to time.Time, count int) ([]model.Candle, error) {
	f.calls++
	var eligible []model.Candle
	for _, c := range f.candles {
		if !c.From.After(to) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) > count {
		eligible = eligible[len(eligible)-count:]
	}
	return eligible, nil
}

func makeSeries(n int, timeframe int) []model.Candle {
	base := time.Now().UTC().Truncate(time.Duration(timeframe) * time.Second).
		Add(-time.Duration(n*timeframe) * time.Second)
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			From:  base.Add(time.Duration(i*timeframe) * time.Second),
			Close: float64(100 + i),
		}
	}
	return out
}

func TestFetchHistoryPaging(t *testing.T) {
	// 2 days of M5: 576 candles, needs one full page plus a partial one.
	src := &fakeSource{candles: makeSeries(576, 300)}
	c := New(src, zerolog.Nop())

	got, err := c.FetchHistory(context.Background(), "ETHUSD", 300, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 576 {
		t.Fatalf("got %d candles, want 576", len(got))
	}
	if src.calls != 1 {
		t.Fatalf("got %d calls, want 1", src.calls)
	}
	for i := 1; i < len(got); i++ {
		if !got[i].From.After(got[i-1].From) {
			t.Fatalf("not strictly ordered at %d", i)
		}
	}
}

func TestFetchHistoryMultiplePages(t *testing.T) {
	// 10 days of M5: 2880 candles, three pages of at most 1000.
	src := &fakeSource{candles: makeSeries(2880, 300)}
	c := New(src, zerolog.Nop())

	got, err := c.FetchHistory(context.Background(), "ETHUSD", 300, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2880 {
		t.Fatalf("got %d candles, want 2880", len(got))
	}
	if src.calls != 3 {
		t.Fatalf("got %d calls, want 3", src.calls)
	}
	// No duplicates across page boundaries.
	seen := make(map[int64]bool, len(got))
	for _, cdl := range got {
		ts := cdl.From.Unix()
		if seen[ts] {
			t.Fatalf("duplicate candle at %v", cdl.From)
		}
		seen[ts] = true
	}
}

func TestFetchHistoryStopsOnEmptyPage(t *testing.T) {
	// Less history on the server than requested.
	src := &fakeSource{candles: makeSeries(100, 300)}
	c := New(src, zerolog.Nop())

	got, err := c.FetchHistory(context.Background(), "ETHUSD", 300, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 100 {
		t.Fatalf("got %d candles, want 100", len(got))
	}
}

func TestExtractMergesExisting(t *testing.T) {
	root := t.TempDir()
	series := makeSeries(40, 300)

	// Seed the raw dataset with the older half.
	path := storage.RawFileName("ETHUSD", 300, 1)
	if err := storage.WriteRawCSV(root+"/data/raw/"+path, series[:30]); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{candles: series[20:]}
	c := New(src, zerolog.Nop())

	merged, _, err := c.Extract(context.Background(), root, "ETHUSD", 300, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 40 {
		t.Fatalf("got %d candles, want 40", len(merged))
	}
}

func TestFresh(t *testing.T) {
	root := t.TempDir()
	path := root + "/raw.csv"

	fresh, err := Fresh(path, time.Hour)
	if err != nil || fresh {
		t.Fatalf("missing file: fresh=%v err=%v", fresh, err)
	}

	old := []model.Candle{{From: time.Now().UTC().Add(-2 * time.Hour), Close: 1}}
	if err := storage.WriteRawCSV(path, old); err != nil {
		t.Fatal(err)
	}
	fresh, err = Fresh(path, time.Hour)
	if err != nil || fresh {
		t.Fatalf("stale file: fresh=%v err=%v", fresh, err)
	}

	recent := []model.Candle{{From: time.Now().UTC().Add(-time.Minute), Close: 1}}
	if err := storage.WriteRawCSV(path, recent); err != nil {
		t.Fatal(err)
	}
	fresh, err = Fresh(path, time.Hour)
	if err != nil || !fresh {
		t.Fatalf("fresh file: fresh=%v err=%v", fresh, err)
	}
}
