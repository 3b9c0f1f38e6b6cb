package ledger

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"spendsmart/internal/core"
)

type fakeChart struct {
	destroyed bool
}

func (c *fakeChart) Destroy() { c.destroyed = true }

type fakeCanvas struct {
	charts       []*fakeChart
	configs      []ChartConfig
	placeholders []string
	drawErr      error
}

func (c *fakeCanvas) Draw(cfg ChartConfig) (Chart, error) {
	if c.drawErr != nil {
		return nil, c.drawErr
	}
	ch := &fakeChart{}
	c.charts = append(c.charts, ch)
	c.configs = append(c.configs, cfg)
	return ch, nil
}

func (c *fakeCanvas) DrawPlaceholder(text string) error {
	c.placeholders = append(c.placeholders, text)
	return nil
}

func TestChartView_Refresh(t *testing.T) {
	canvas := &fakeCanvas{}
	v := NewChartView(canvas)
	d := ComputeDistribution([]core.Transaction{tx(1, core.Expense, 1250, "Food")})

	if err := v.Refresh(d); err != nil {
		t.Fatal(err)
	}
	if err := v.Refresh(d); err != nil {
		t.Fatal(err)
	}
	if len(canvas.charts) != 2 {
		t.Fatalf("charts drawn = %d, want 2", len(canvas.charts))
	}
	if !canvas.charts[0].destroyed || canvas.charts[1].destroyed {
		t.Error("each refresh should destroy only the previous chart")
	}

	if err := v.Refresh(Distribution{}); err != nil {
		t.Fatal(err)
	}
	if !canvas.charts[1].destroyed {
		t.Error("placeholder refresh should destroy the live chart")
	}
	if want := []string{ChartPlaceholder}; !reflect.DeepEqual(canvas.placeholders, want) {
		t.Errorf("placeholders = %v, want %v", canvas.placeholders, want)
	}
}

func TestChartView_RefreshError(t *testing.T) {
	canvas := &fakeCanvas{drawErr: errors.New("no context")}
	v := NewChartView(canvas)
	err := v.Refresh(Distribution{Labels: []string{"Food"}, Values: []core.Money{{Cents: 1}}})
	if err == nil || !strings.Contains(err.Error(), "no context") {
		t.Errorf("Refresh() error = %v", err)
	}
}

func TestNewChartConfig_JSON(t *testing.T) {
	cfg := NewChartConfig(Distribution{
		Labels: []string{"Rent", "Food"},
		Values: []core.Money{{Cents: 40000}, {Cents: 1250}},
	})
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "doughnut" {
		t.Errorf("type = %v", got["type"])
	}
	data := got["data"].(map[string]any)
	ds := data["datasets"].([]any)[0].(map[string]any)
	if values := ds["data"].([]any); values[0] != 400.0 || values[1] != 12.5 {
		t.Errorf("values = %v", values)
	}
	if colors := ds["backgroundColor"].([]any); len(colors) != 6 || colors[0] != "#4F46E5" {
		t.Errorf("colors = %v", colors)
	}
	plugins := got["options"].(map[string]any)["plugins"].(map[string]any)
	if pos := plugins["legend"].(map[string]any)["position"]; pos != "bottom" {
		t.Errorf("legend position = %v", pos)
	}
	if text := plugins["title"].(map[string]any)["text"]; text != ChartTitle {
		t.Errorf("title = %v", text)
	}
}

func TestHTMLCanvas(t *testing.T) {
	c := &HTMLCanvas{}
	v := NewChartView(c)

	if err := v.Refresh(Distribution{}); err != nil {
		t.Fatal(err)
	}
	if got := string(c.HTML()); !strings.Contains(got, "No expense data yet") {
		t.Errorf("placeholder html = %s", got)
	}

	d := ComputeDistribution([]core.Transaction{tx(1, core.Expense, 100, `Tom's "Bar"`)})
	if err := v.Refresh(d); err != nil {
		t.Fatal(err)
	}
	got := string(c.HTML())
	if !strings.HasPrefix(got, `<canvas id="expenseChart" data-chart="`) {
		t.Errorf("chart html = %s", got)
	}
	if strings.Contains(got, `"Bar"`) {
		t.Errorf("config should be attribute-escaped: %s", got)
	}
	if c.Live() != 1 {
		t.Errorf("live = %d, want 1", c.Live())
	}
}
