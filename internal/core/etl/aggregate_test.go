package etl

import (
	"testing"
	"time"
)

func monthlySource(createdAt time.Time) SourceDataset {
	return SourceDataset{
		Dataset: &Dataset{
			Columns: []string{"date", "revenue", "expense", "profit"},
			Rows: []map[string]any{
				{"date": "2023-01-10", "revenue": 500.0, "expense": 300.0, "profit": 200.0},
				{"date": "2023-02-05", "revenue": 600.0, "expense": 350.0, "profit": 250.0},
			},
		},
		Roles: RoleMap{
			RoleDate:    "date",
			RoleRevenue: "revenue",
			RoleExpense: "expense",
			RoleProfit:  "profit",
		},
		CreatedAt: createdAt,
	}
}

func TestAggregateMonthlyGrowth(t *testing.T) {
	res := Aggregate([]SourceDataset{monthlySource(time.Now())}, FreqMonth, nil, nil)

	if res.Empty {
		t.Fatal("unexpected empty result")
	}
	if len(res.Series) != 2 {
		t.Fatalf("got %d buckets, want 2", len(res.Series))
	}

	jan := res.Series[0]
	if !jan.Period.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first bucket = %v, want 2023-01-01", jan.Period)
	}
	if jan.Profit != 200 {
		t.Errorf("january profit = %v, want 200", jan.Profit)
	}

	m := res.Metrics
	if m.Profit != 250 || m.Revenue != 600 {
		t.Errorf("latest metrics = %+v, want profit 250 revenue 600", m)
	}
	if m.Growth != 25.0 {
		t.Errorf("growth = %v, want 25.0", m.Growth)
	}
	wantEff := round1(250.0 / 600.0 * 100) // 41.7
	if m.Efficiency != wantEff {
		t.Errorf("efficiency = %v, want %v", m.Efficiency, wantEff)
	}
	if m.Projection != round2(250*1.25) {
		t.Errorf("projection = %v, want %v", m.Projection, round2(250*1.25))
	}
}

func TestAggregateGrowthZeroPrior(t *testing.T) {
	src := SourceDataset{
		Dataset: &Dataset{
			Columns: []string{"date", "profit"},
			Rows: []map[string]any{
				{"date": "2023-01-10", "profit": 0.0},
				{"date": "2023-02-05", "profit": 250.0},
			},
		},
		Roles:     RoleMap{RoleDate: "date", RoleProfit: "profit"},
		CreatedAt: time.Now(),
	}
	res := Aggregate([]SourceDataset{src}, FreqMonth, nil, nil)
	if res.Metrics.Growth != 0 {
		t.Errorf("growth with zero prior profit = %v, want 0", res.Metrics.Growth)
	}
	// Flat 5% default projection when no positive trend.
	if res.Metrics.Projection != round2(250*1.05) {
		t.Errorf("projection = %v, want %v", res.Metrics.Projection, round2(250*1.05))
	}
}

func TestAggregateEmptyRange(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	res := Aggregate([]SourceDataset{monthlySource(time.Now())}, FreqMonth, &start, nil)

	if !res.Empty {
		t.Fatal("expected empty result for out-of-range filter")
	}
	if len(res.Series) != 0 {
		t.Errorf("empty result has %d buckets", len(res.Series))
	}
	if res.Metrics != (Metrics{}) {
		t.Errorf("empty result has metrics %+v", res.Metrics)
	}
}

func TestAggregateNoDedupAcrossDatasets(t *testing.T) {
	created := time.Now()
	once := Aggregate([]SourceDataset{monthlySource(created)}, FreqMonth, nil, nil)
	twice := Aggregate([]SourceDataset{monthlySource(created), monthlySource(created)}, FreqMonth, nil, nil)

	for i := range once.Series {
		if twice.Series[i].Revenue != 2*once.Series[i].Revenue {
			t.Errorf("bucket %d revenue = %v, want doubled %v",
				i, twice.Series[i].Revenue, 2*once.Series[i].Revenue)
		}
	}
}

func TestAggregateCreationTimeFallback(t *testing.T) {
	created := time.Date(2023, 5, 14, 9, 30, 0, 0, time.UTC)
	src := SourceDataset{
		Dataset: &Dataset{
			Columns: []string{"revenue"},
			Rows: []map[string]any{
				{"revenue": 100.0},
				{"revenue": 50.0},
			},
		},
		Roles:     RoleMap{RoleRevenue: "revenue"},
		CreatedAt: created,
	}
	res := Aggregate([]SourceDataset{src}, FreqMonth, nil, nil)
	if len(res.Series) != 1 {
		t.Fatalf("got %d buckets, want 1 at the dataset creation month", len(res.Series))
	}
	if !res.Series[0].Period.Equal(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bucket period = %v, want 2023-05-01", res.Series[0].Period)
	}
	if res.Series[0].Revenue != 150 {
		t.Errorf("bucket revenue = %v, want 150", res.Series[0].Revenue)
	}
}

func TestAggregateWeeklyBucketsOnISOMonday(t *testing.T) {
	src := SourceDataset{
		Dataset: &Dataset{
			Columns: []string{"date", "revenue"},
			Rows: []map[string]any{
				// Wed 2023-06-07 and Sun 2023-06-11 share the week of Mon 2023-06-05.
				{"date": "2023-06-07", "revenue": 10.0},
				{"date": "2023-06-11", "revenue": 15.0},
				// Mon 2023-06-12 starts the next week.
				{"date": "2023-06-12", "revenue": 20.0},
			},
		},
		Roles:     RoleMap{RoleDate: "date", RoleRevenue: "revenue"},
		CreatedAt: time.Now(),
	}
	res := Aggregate([]SourceDataset{src}, FreqWeek, nil, nil)
	if len(res.Series) != 2 {
		t.Fatalf("got %d weekly buckets, want 2", len(res.Series))
	}
	if !res.Series[0].Period.Equal(time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first week starts %v, want Monday 2023-06-05", res.Series[0].Period)
	}
	if res.Series[0].Revenue != 25 {
		t.Errorf("first week revenue = %v, want 25", res.Series[0].Revenue)
	}
}

func TestAggregateMergedRolesFirstDatasetWins(t *testing.T) {
	a := SourceDataset{
		Dataset: &Dataset{
			Columns: []string{"date", "sales"},
			Rows:    []map[string]any{{"date": "2023-01-02", "sales": 100.0}},
		},
		Roles:     RoleMap{RoleDate: "date", RoleRevenue: "sales"},
		CreatedAt: time.Now(),
	}
	b := SourceDataset{
		Dataset: &Dataset{
			Columns: []string{"date", "income"},
			Rows:    []map[string]any{{"date": "2023-01-09", "income": 50.0}},
		},
		Roles:     RoleMap{RoleDate: "date", RoleRevenue: "income"},
		CreatedAt: time.Now(),
	}

	res := Aggregate([]SourceDataset{a, b}, FreqYear, nil, nil)
	if res.Roles["revenue"] != "sales" {
		t.Errorf("reported revenue column = %q, want first dataset's sales", res.Roles["revenue"])
	}
}

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"W", FreqWeek, false},
		{"m", FreqMonth, false},
		{"Y", FreqYear, false},
		{"month", FreqMonth, false},
		{"quarterly", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFrequency(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("ParseFrequency(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFrequency(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
