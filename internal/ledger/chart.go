package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"sync"
)

const (
	ChartTitle       = "Expense Breakdown by Category"
	ChartPlaceholder = "No expense data yet"
)

// ChartPalette is the fixed slice colour list.
var ChartPalette = []string{"#4F46E5", "#22C55E", "#F59E0B", "#EF4444", "#3B82F6", "#10B981"}

// ChartConfig is a doughnut chart in the shape Chart.js accepts.
type ChartConfig struct {
	Type    string       `json:"type"`
	Data    ChartData    `json:"data"`
	Options ChartOptions `json:"options"`
}

type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

type ChartDataset struct {
	Data            []json.Number `json:"data"`
	BackgroundColor []string      `json:"backgroundColor"`
}

type ChartOptions struct {
	Responsive bool         `json:"responsive"`
	Plugins    ChartPlugins `json:"plugins"`
}

type ChartPlugins struct {
	Legend ChartLegend    `json:"legend"`
	Title  ChartTitleOpts `json:"title"`
}

type ChartLegend struct {
	Position string `json:"position"`
}

type ChartTitleOpts struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

// NewChartConfig builds the doughnut config for a non-empty distribution.
func NewChartConfig(d Distribution) ChartConfig {
	values := make([]json.Number, len(d.Values))
	for i, v := range d.Values {
		values[i] = json.Number(v.String())
	}
	return ChartConfig{
		Type: "doughnut",
		Data: ChartData{
			Labels: append([]string(nil), d.Labels...),
			Datasets: []ChartDataset{{
				Data:            values,
				BackgroundColor: ChartPalette,
			}},
		},
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Position: "bottom"},
				Title:  ChartTitleOpts{Display: true, Text: ChartTitle},
			},
		},
	}
}

// Chart is a drawn chart instance.
type Chart interface {
	Destroy()
}

// Canvas is the surface the expense chart is drawn on.
type Canvas interface {
	Draw(cfg ChartConfig) (Chart, error)
	DrawPlaceholder(text string) error
}

// ChartView owns at most one live chart on its canvas.
type ChartView struct {
	canvas  Canvas
	current Chart
}

func NewChartView(canvas Canvas) *ChartView {
	return &ChartView{canvas: canvas}
}

// Refresh destroys the previous chart and draws the distribution, or the
// placeholder text when there are no expenses.
func (v *ChartView) Refresh(d Distribution) error {
	if v.current != nil {
		v.current.Destroy()
		v.current = nil
	}
	if d.Empty() {
		return v.canvas.DrawPlaceholder(ChartPlaceholder)
	}
	c, err := v.canvas.Draw(NewChartConfig(d))
	if err != nil {
		return fmt.Errorf("draw chart: %w", err)
	}
	v.current = c
	return nil
}

var canvasTmpl = template.Must(template.New("canvas").Parse(
	`{{if .Config}}<canvas id="expenseChart" data-chart="{{.Config}}"></canvas>` +
		`{{else}}<p class="chart-placeholder">{{.Placeholder}}</p>{{end}}`))

// HTMLCanvas renders the chart as an HTML fragment that the dashboard
// script hands to Chart.js.
type HTMLCanvas struct {
	mu   sync.Mutex
	html template.HTML
	live int
}

func (c *HTMLCanvas) Draw(cfg ChartConfig) (Chart, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.render(string(raw), ""); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.live++
	c.mu.Unlock()
	return &htmlChart{canvas: c}, nil
}

func (c *HTMLCanvas) DrawPlaceholder(text string) error {
	return c.render("", text)
}

func (c *HTMLCanvas) render(config, placeholder string) error {
	var buf bytes.Buffer
	err := canvasTmpl.Execute(&buf, struct{ Config, Placeholder string }{config, placeholder})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.html = template.HTML(buf.String())
	c.mu.Unlock()
	return nil
}

// HTML returns the last drawn fragment.
func (c *HTMLCanvas) HTML() template.HTML {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.html
}

// Live reports how many drawn charts have not been destroyed.
func (c *HTMLCanvas) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

type htmlChart struct {
	canvas *HTMLCanvas
	once   sync.Once
}

func (h *htmlChart) Destroy() {
	h.once.Do(func() {
		h.canvas.mu.Lock()
		h.canvas.live--
		h.canvas.html = ""
		h.canvas.mu.Unlock()
	})
}
