package services

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

type countingCache struct {
	data map[string]string
	gets int
	sets int
}

func newCountingCache() *countingCache {
	return &countingCache{data: make(map[string]string)}
}

func (c *countingCache) Get(key string) (string, bool) {
	c.gets++
	v, ok := c.data[key]
	return v, ok
}

func (c *countingCache) Set(key string, data string) {
	c.sets++
	c.data[key] = data
}

func (c *countingCache) Delete(key string) { delete(c.data, key) }
func (c *countingCache) Size() int         { return len(c.data) }

func overRow() CategoryReport {
	return CategoryReport{
		Name:   "Ocio",
		Budget: decimal.NewFromInt(100),
		Spent:  decimal.NewFromInt(250),
		Status: StatusOver,
	}
}

func TestCategoryInsightMemoized(t *testing.T) {
	c := newCountingCache()
	e := NewEngine(EngineConfig{}, nil, WithInsightCache(c))

	first := e.categoryInsight(overRow())
	second := e.categoryInsight(overRow())

	if first == "" || first != second {
		t.Fatalf("insight not stable: %q vs %q", first, second)
	}
	if c.sets != 1 {
		t.Errorf("sets = %d, want 1 (second call served from cache)", c.sets)
	}
	if c.Size() != 1 {
		t.Errorf("cache size = %d, want 1", c.Size())
	}
}

func TestCategoryInsightWithoutCache(t *testing.T) {
	e := NewEngine(EngineConfig{}, nil)
	if got := e.categoryInsight(overRow()); got == "" {
		t.Error("insight must render without a configured cache")
	}
}

func TestRenderInsight(t *testing.T) {
	tests := []struct {
		name string
		row  CategoryReport
		want string
	}{
		{
			name: "over budget names the overage",
			row:  overRow(),
			want: "over budget by 150.00",
		},
		{
			name: "warning names the percentage",
			row: CategoryReport{
				Name:       "Alimentación",
				Budget:     decimal.NewFromInt(300),
				Spent:      decimal.NewFromInt(285),
				Percentage: 95,
				Status:     StatusWarning,
			},
			want: "95% of budget used",
		},
		{
			name: "spending without budget",
			row: CategoryReport{
				Name:             "Prensa",
				Spent:            decimal.NewFromInt(5),
				TransactionCount: 1,
				Status:           StatusNoBudget,
			},
			want: "spending without a budget",
		},
		{
			name: "ok rows stay silent",
			row: CategoryReport{
				Name:   "Salud",
				Budget: decimal.NewFromInt(50),
				Spent:  decimal.NewFromInt(10),
				Status: StatusOK,
			},
			want: "",
		},
		{
			name: "idle no-budget row stays silent",
			row:  CategoryReport{Name: "Viajes", Status: StatusNoBudget},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderInsight(tt.row)
			if tt.want == "" {
				if got != "" {
					t.Errorf("renderInsight() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("renderInsight() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
