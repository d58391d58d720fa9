package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

// RunConfig holds churn run parameters for display.
type RunConfig struct {
	Target       string        // host:port/database
	Table        string        // table under churn
	Workers      int           // number of concurrent workers
	PoolSize     int           // connection pool ceiling
	Duration     time.Duration // run duration (0 = until interrupted)
	PayloadSize  int           // bytes written back per attempt
	QueryTimeout time.Duration // per-statement timeout
	ConfigFile   string        // path to config file if used
}

// PoolStat is the subset of pool counters the pool panel renders.
// *pgxpool.Stat satisfies it.
type PoolStat interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
	ConstructingConns() int32
	AcquireCount() int64
	EmptyAcquireCount() int64
	AcquireDuration() time.Duration
}

// Dashboard renders a live terminal UI for churn run metrics.
type Dashboard struct {
	collector    *metrics.Collector
	poolStat     func() PoolStat
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid         *ui.Grid
	sparkGroup   *widgets.SparklineGroup
	latencyPara  *widgets.Paragraph
	successGauge *widgets.Gauge
	failureList  *widgets.List
	sqlstateList *widgets.List
	summaryPara  *widgets.Paragraph
	metricsPara  *widgets.Paragraph
	poolPara     *widgets.Paragraph
	opsHistory   []float64
	p95History   []float64
	startTime    time.Time
	runConfig    RunConfig
}

// New creates a new Dashboard. poolStat may be nil when no pool counters
// are available.
func New(collector *metrics.Collector, cfg RunConfig, poolStat func() PoolStat, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:    collector,
		poolStat:     poolStat,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		opsHistory:   make([]float64, 0, 100),
		p95History:   make([]float64, 0, 100),
		startTime:    time.Now(),
		runConfig:    cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	// Throughput + P95 Sparklines
	opsSpark := widgets.NewSparkline()
	opsSpark.Title = "Throughput (ops/s)"
	opsSpark.LineColor = ui.ColorBlue
	opsSpark.Data = []float64{0}

	p95Spark := widgets.NewSparkline()
	p95Spark.Title = "P95 latency (ms)"
	p95Spark.LineColor = ui.ColorGreen
	p95Spark.Data = []float64{0}

	d.sparkGroup = widgets.NewSparklineGroup(opsSpark, p95Spark)
	d.sparkGroup.Title = "Throughput / P95"
	d.sparkGroup.BorderStyle.Fg = ui.ColorCyan

	// Latency Metrics Paragraph
	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMax: 0ms\nMean: 0ms\nP95: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	// Success Rate Gauge
	d.successGauge = widgets.NewGauge()
	d.successGauge.Title = "Success Rate"
	d.successGauge.Percent = 0
	d.successGauge.BarColor = ui.ColorGreen
	d.successGauge.BorderStyle.Fg = ui.ColorCyan
	d.successGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	// Failure Reason List
	d.failureList = widgets.NewList()
	d.failureList.Title = "Failure Reasons"
	d.failureList.Rows = []string{"No failures"}
	d.failureList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.failureList.BorderStyle.Fg = ui.ColorCyan

	// SQLSTATE List
	d.sqlstateList = widgets.NewList()
	d.sqlstateList.Title = "SQLSTATE Breakdown"
	d.sqlstateList.Rows = []string{"No server errors"}
	d.sqlstateList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.sqlstateList.BorderStyle.Fg = ui.ColorCyan

	// Summary Paragraph
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	// Metrics Paragraph (plain text summary)
	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	// Connection Pool Paragraph
	d.poolPara = widgets.NewParagraph()
	d.poolPara.Title = "Connection Pool"
	d.poolPara.Text = "No pool data"
	d.poolPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.poolPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.successGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.sparkGroup),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.poolPara),
		),
		ui.NewRow(0.28,
			ui.NewCol(0.5, d.failureList),
			ui.NewCol(0.5, d.sqlstateList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and cleans up.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			// Check if context is done to avoid blocking
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.WindowStats(elapsed)

	currentOps := stats.OpsPerSec

	// Update sparkline histories
	d.opsHistory = append(d.opsHistory, currentOps)
	if len(d.opsHistory) > 100 {
		d.opsHistory = d.opsHistory[1:]
	}
	d.sparkGroup.Sparklines[0].Data = d.opsHistory

	if stats.SampleSize > 0 {
		d.p95History = append(d.p95History, stats.P95LatencyMs)
		if len(d.p95History) > 100 {
			d.p95History = d.p95History[1:]
		}
		d.sparkGroup.Sparklines[1].Data = d.p95History
	}
	d.sparkGroup.Title = fmt.Sprintf(
		"Throughput / P95 | %.1f ops/s | p95 %.2fms",
		currentOps,
		stats.P95LatencyMs,
	)

	successRate := stats.SuccessRate * 100

	gaugePercent := int(successRate)
	if gaugePercent > 100 {
		gaugePercent = 100
	}
	if gaugePercent < 0 {
		gaugePercent = 0
	}
	d.successGauge.Percent = gaugePercent
	d.successGauge.Label = fmt.Sprintf("%.1f%%", successRate)

	// Build run parameters line
	params := d.formatRunParams()

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Total: %d | Success Rate: %.1f%%",
		d.runConfig.Target,
		params,
		elapsed.Round(time.Second),
		stats.Total,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Operations:  %d\nSuccessful:        %d\nFailed:            %d\nCurrent Ops/s:     %.2f\nSuccess Rate:      %.1f%%\nMin Latency:       %.2fms\nMean Latency:      %.2fms\nP95/P99:           %.2f / %.2f ms",
		stats.Total,
		stats.Successes,
		stats.Failures,
		currentOps,
		successRate,
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P95LatencyMs,
		stats.P99LatencyMs,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMax:  %.2fms\nMean: %.2fms\nP95:  %.2fms\nP99:  %.2fms",
		stats.MinLatencyMs,
		stats.MaxLatencyMs,
		stats.MeanLatencyMs,
		stats.P95LatencyMs,
		stats.P99LatencyMs,
	)

	d.failureList.Rows = formatFailureRows(d.collector.FailureReasons())
	d.sqlstateList.Rows = formatSQLStateRows(d.collector.SQLStates())
	d.updatePoolPanel()
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) updatePoolPanel() {
	if d.poolStat == nil {
		d.poolPara.Text = "[No pool data](fg:green)"
		return
	}
	stat := d.poolStat()
	if stat == nil {
		d.poolPara.Text = "[No pool data](fg:green)"
		return
	}
	d.poolPara.Text = joinLines(formatPoolLines(stat))
}

func formatPoolLines(stat PoolStat) []string {
	return []string{
		fmt.Sprintf("[Connections:](fg:cyan) total %d | idle %d | acquired %d | opening %d",
			stat.TotalConns(),
			stat.IdleConns(),
			stat.AcquiredConns(),
			stat.ConstructingConns(),
		),
		fmt.Sprintf("[Acquires:](fg:cyan) %d total | %d waited | %s cumulative wait",
			stat.AcquireCount(),
			stat.EmptyAcquireCount(),
			stat.AcquireDuration().Round(time.Millisecond),
		),
	}
}

func formatFailureRows(reasons map[string]int) []string {
	if len(reasons) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	type reasonRow struct {
		name  string
		count int
	}
	rows := make([]reasonRow, 0, len(reasons))
	for name, count := range reasons {
		rows = append(rows, reasonRow{name: metrics.FriendlyReasonName(name), count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count == rows[j].count {
			return rows[i].name < rows[j].name
		}
		return rows[i].count > rows[j].count
	})
	maxRows := len(rows)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for i := 0; i < maxRows; i++ {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", rows[i].name, rows[i].count))
	}
	return formatted
}

func formatSQLStateRows(states map[string]int) []string {
	rows := metrics.FlattenSQLStates(states)
	if len(rows) == 0 {
		return []string{"[No server errors](fg:green)"}
	}
	maxRows := len(rows)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for i := 0; i < maxRows; i++ {
		row := rows[i]
		formatted = append(formatted, fmt.Sprintf("[%s %s](fg:red) %d", row.Code, row.Label, row.Count))
	}
	return formatted
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	result := lines[0]
	for i := 1; i < len(lines); i++ {
		result += "\n" + lines[i]
	}
	return result
}

// formatRunParams formats the run configuration parameters for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.Table != "" {
		parts = append(parts, fmt.Sprintf("Table: %s", d.runConfig.Table))
	}

	if d.runConfig.Workers > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", d.runConfig.Workers))
	}

	if d.runConfig.PoolSize > 0 {
		parts = append(parts, fmt.Sprintf("Pool: %d", d.runConfig.PoolSize))
	}

	if d.runConfig.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", d.runConfig.Duration))
	} else {
		parts = append(parts, "Duration: until interrupted")
	}

	if d.runConfig.PayloadSize > 0 {
		parts = append(parts, fmt.Sprintf("Payload: %dB", d.runConfig.PayloadSize))
	}

	if d.runConfig.QueryTimeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.runConfig.QueryTimeout))
	}

	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " | ")
}
