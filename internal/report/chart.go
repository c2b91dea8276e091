package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"

	"caravan/internal/store/runs"
)

// ImageResult 是渲染好的 PNG 图片及其元信息。
type ImageResult struct {
	Bytes       []byte `json:"-"`
	Base64      string `json:"base64"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

func (r *ImageResult) DataURI() string {
	if r == nil {
		return ""
	}
	if r.Base64 == "" && len(r.Bytes) > 0 {
		r.Base64 = base64.StdEncoding.EncodeToString(r.Bytes)
	}
	if r.Base64 == "" {
		return ""
	}
	return "data:image/png;base64," + r.Base64
}

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBalance       = "#34d399"
	colorSMA           = "#fbbf24"
	colorZeroLine      = "#f87171"

	chartWidthPx  = 1200
	chartHeightPx = 520

	// SMA 平滑窗口；曲线点数不足两个窗口时不画均线。
	smaPeriod = 5
)

// RenderHTML 把一次规划的余额曲线渲染为自包含 HTML 页面。
func RenderHTML(run runs.Run, snapshots []runs.Snapshot) ([]byte, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("run %s 没有余额曲线可绘制", run.ID)
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildBalanceChart(run, snapshots))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPNG 经由无头浏览器把余额曲线截图为 PNG。
func RenderPNG(ctx context.Context, run runs.Run, snapshots []runs.Snapshot) (ImageResult, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return ImageResult{}, err
	}
	html, err := RenderHTML(run, snapshots)
	if err != nil {
		return ImageResult{}, err
	}
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, chartHeightPx+80)
	if err != nil {
		return ImageResult{}, err
	}
	return ImageResult{
		Bytes:       png,
		Base64:      base64.StdEncoding.EncodeToString(png),
		Filename:    fmt.Sprintf("run_%s.png", run.ID),
		Description: chartTitle(run),
	}, nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable 只在首次调用时探测 Chrome 是否可用，结果全局缓存。
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func buildBalanceChart(run runs.Run, snapshots []runs.Snapshot) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         chartTitle(run),
			Subtitle:      chartSubtitle(run),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			Name:      "入账步数",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	xAxis := make([]string, len(snapshots))
	balances := make([]float64, len(snapshots))
	data := make([]opts.LineData, len(snapshots))
	for i, s := range snapshots {
		xAxis[i] = fmt.Sprintf("%d", s.Step+1)
		balances[i] = float64(s.Balance)
		data[i] = opts.LineData{Value: s.Balance}
	}

	line.SetXAxis(xAxis)
	line.AddSeries("Balance", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorBalance, Width: 2}))
	if len(balances) >= smaPeriod*2 {
		sma := talib.Sma(balances, smaPeriod)
		line.AddSeries(fmt.Sprintf("SMA%d", smaPeriod), toLineData(sma, len(balances)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorSMA, Width: 2}))
	}
	return line
}

func chartTitle(run runs.Run) string {
	name := strings.TrimSpace(run.RouteName)
	if name == "" {
		name = strings.TrimSpace(run.Symbol)
	}
	if name == "" {
		name = run.Source
	}
	return fmt.Sprintf("余额曲线 %s", name)
}

func chartSubtitle(run runs.Run) string {
	return fmt.Sprintf("%d/%d 停靠点入选 | 期末余额 %d | 峰值 %d",
		run.Selected, run.Stats.Stops, run.Stats.FinalBalance, run.Stats.PeakBalance)
}

func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		val := series[i]
		if math.IsNaN(val) {
			line[offset+i] = opts.LineData{Value: nil}
		} else {
			line[offset+i] = opts.LineData{Value: val}
		}
	}
	return line
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
