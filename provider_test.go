package windgo

import (
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeTerminal 测试用终端替身
type fakeTerminal struct {
	startErr  error
	connected bool

	startCalls int
	wsetCalls  int
	wsdCalls   int
	wssCalls   int

	wsetFn func(report, options string) (*Response, error)
	wsdFn  func(codes, fields, beginTime, endTime, options string) (*Response, error)
	wssFn  func(codes, fields, options string) (*Response, error)
}

func (f *fakeTerminal) Start() error {
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.connected = true
	return nil
}

func (f *fakeTerminal) IsConnected() bool { return f.connected }

func (f *fakeTerminal) Stop() error {
	f.connected = false
	return nil
}

func (f *fakeTerminal) WSet(report, options string) (*Response, error) {
	f.wsetCalls++
	if f.wsetFn == nil {
		return nil, fmt.Errorf("wset not stubbed")
	}
	return f.wsetFn(report, options)
}

func (f *fakeTerminal) WSD(codes, fields, beginTime, endTime, options string) (*Response, error) {
	f.wsdCalls++
	if f.wsdFn == nil {
		return nil, fmt.Errorf("wsd not stubbed")
	}
	return f.wsdFn(codes, fields, beginTime, endTime, options)
}

func (f *fakeTerminal) WSS(codes, fields, options string) (*Response, error) {
	f.wssCalls++
	if f.wssFn == nil {
		return nil, fmt.Errorf("wss not stubbed")
	}
	return f.wssFn(codes, fields, options)
}

// memoryCache 测试用内存缓存
type memoryCache struct {
	entries map[string]*Table
	saves   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*Table)}
}

func (m *memoryCache) Find(key string, maxAge time.Duration) (string, bool) {
	_, ok := m.entries[key]
	return key, ok
}

func (m *memoryCache) Load(handle string) (*Table, error) {
	t, ok := m.entries[handle]
	if !ok {
		return nil, fmt.Errorf("no entry %q", handle)
	}
	return t, nil
}

func (m *memoryCache) Save(key string, t *Table, source string) (string, error) {
	m.saves++
	m.entries[key] = t
	return key, nil
}

func stockListResponse() *Response {
	return &Response{
		ErrorCode: 0,
		Fields:    []string{"WIND_CODE", "SEC_NAME", "TRADE_STATUS", "IPO_DATE", "PROVINCE", "SEC_TYPE", "LISTING_BOARD", "EXCHANGE"},
		Data: [][]interface{}{
			{"000001.SZ", "600519.SH"},
			{"平安银行", "贵州茅台"},
			{"交易", "交易"},
			{"1991-04-03", "2001-08-27"},
			{"广东", "贵州"},
			{"A股", "A股"},
			{"主板", "主板"},
			{"深交所", "上交所"},
		},
	}
}

func dailyResponse() *Response {
	return &Response{
		ErrorCode: 0,
		Fields:    []string{"OPEN", "HIGH", "LOW", "CLOSE", "PRE_CLOSE", "CHG", "PCT_CHG", "VOLUME", "AMT"},
		Times:     []string{"2024-01-02", "2024-01-03"},
		Data: [][]interface{}{
			{9.2, 9.3},
			{9.5, 9.6},
			{9.1, 9.2},
			{9.4, 9.5},
			{9.1, 9.4},
			{0.3, 0.1},
			{3.3, 1.1},
			{120345.0, 98761.0},
			{1.13e8, 0.92e8},
		},
	}
}

// TestStockListDisconnected 连接不可用时证券列表返回空表
func TestStockListDisconnected(t *testing.T) {
	term := &fakeTerminal{startErr: fmt.Errorf("terminal offline")}
	p := NewProviderWith(term, nil, zap.NewNop())

	got := p.StockList()
	if !got.Empty() {
		t.Errorf("expected empty table, got %d rows", got.Len())
	}
	if term.wsetCalls != 0 {
		t.Errorf("no remote call expected when disconnected, got %d", term.wsetCalls)
	}
}

// TestStockDailyDisconnected 连接不可用时日线返回空表且不抛出
func TestStockDailyDisconnected(t *testing.T) {
	term := &fakeTerminal{startErr: fmt.Errorf("terminal offline")}
	p := NewProviderWith(term, nil, zap.NewNop())

	got := p.StockDaily("000001.SZ", "", "")
	if !got.Empty() {
		t.Errorf("expected empty table, got %d rows", got.Len())
	}
}

// TestStockList 测试证券列表的整形与标准列
func TestStockList(t *testing.T) {
	term := &fakeTerminal{
		wsetFn: func(report, options string) (*Response, error) {
			if report != stockListReport {
				t.Errorf("unexpected report %q", report)
			}
			return stockListResponse(), nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	got := p.StockList()
	if got.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", got.Len())
	}
	for _, col := range []string{"ts_code", "name", "list_status", "list_date", "area", "market", "industry", "exchange", "symbol"} {
		if !got.HasColumn(col) {
			t.Errorf("missing canonical column %q", col)
		}
	}
	// 原始列保留
	if !got.HasColumn("WIND_CODE") {
		t.Error("vendor column WIND_CODE should be preserved")
	}
	if v := got.Value(1, "symbol"); v != "600519" {
		t.Errorf("symbol = %v, want 600519", v)
	}
}

// TestStockListCacheRoundTrip 缓存窗口内第二次获取不再走远程
func TestStockListCacheRoundTrip(t *testing.T) {
	term := &fakeTerminal{
		wsetFn: func(report, options string) (*Response, error) {
			return stockListResponse(), nil
		},
	}
	cache := newMemoryCache()
	p := NewProviderWith(term, cache, zap.NewNop())

	first := p.StockList()
	if first.Empty() {
		t.Fatal("first fetch should not be empty")
	}
	if cache.saves != 1 {
		t.Fatalf("expected 1 cache save, got %d", cache.saves)
	}

	second := p.StockList()
	if term.wsetCalls != 1 {
		t.Errorf("second fetch should hit cache, wset calls = %d", term.wsetCalls)
	}
	if second.Len() != first.Len() {
		t.Errorf("cached table rows = %d, want %d", second.Len(), first.Len())
	}
	for i, col := range first.Columns {
		if second.Columns[i] != col {
			t.Errorf("cached column %d = %q, want %q", i, second.Columns[i], col)
		}
	}
}

// TestStockDaily 测试日线整形：趋势列、标准列、ts_code 列
func TestStockDaily(t *testing.T) {
	var gotCodes, gotBegin, gotEnd string
	term := &fakeTerminal{
		wsdFn: func(codes, fields, beginTime, endTime, options string) (*Response, error) {
			gotCodes, gotBegin, gotEnd = codes, beginTime, endTime
			return dailyResponse(), nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	got := p.StockDaily("000001", "2024-01-01", "2024-01-05")
	if gotCodes != "000001.SZ" {
		t.Errorf("wsd codes = %q, want normalized 000001.SZ", gotCodes)
	}
	if gotBegin != "2024-01-01" || gotEnd != "2024-01-05" {
		t.Errorf("date range = %q..%q", gotBegin, gotEnd)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", got.Len())
	}
	for _, col := range []string{"trade_date", "open", "high", "low", "close", "pre_close", "change", "pct_chg", "vol", "amount", "ts_code"} {
		if !got.HasColumn(col) {
			t.Errorf("missing canonical column %q", col)
		}
	}
	// 翻译是增量的：翻译列与原始列并存
	if !got.HasColumn("CLOSE") {
		t.Error("vendor column CLOSE should be preserved alongside close")
	}
	if v := got.Value(0, "ts_code"); v != "000001.SZ" {
		t.Errorf("ts_code = %v", v)
	}
	if v := got.Value(1, "trade_date"); v != "2024-01-03" {
		t.Errorf("trade_date = %v", v)
	}
}

// TestStockDailyDefaultDates 缺省起止日期为一年前到当天
func TestStockDailyDefaultDates(t *testing.T) {
	var gotBegin, gotEnd string
	term := &fakeTerminal{
		wsdFn: func(codes, fields, beginTime, endTime, options string) (*Response, error) {
			gotBegin, gotEnd = beginTime, endTime
			return dailyResponse(), nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())
	p.StockDaily("600000", "", "")

	wantEnd := time.Now().Format("2006-01-02")
	wantBegin := time.Now().AddDate(-1, 0, 0).Format("2006-01-02")
	if gotEnd != wantEnd {
		t.Errorf("default end = %q, want %q", gotEnd, wantEnd)
	}
	if gotBegin != wantBegin {
		t.Errorf("default begin = %q, want %q", gotBegin, wantBegin)
	}
}

// TestStockDailyRemoteError 远程错误码非 0 时返回空表
func TestStockDailyRemoteError(t *testing.T) {
	term := &fakeTerminal{
		wsdFn: func(codes, fields, beginTime, endTime, options string) (*Response, error) {
			return &Response{ErrorCode: -40520007}, nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	if got := p.StockDaily("000001.SZ", "", ""); !got.Empty() {
		t.Errorf("expected empty table on remote error, got %d rows", got.Len())
	}
}

// TestStockInfo 测试基本信息整形与占位回退
func TestStockInfo(t *testing.T) {
	term := &fakeTerminal{
		wsdFn: func(codes, fields, beginTime, endTime, options string) (*Response, error) {
			return &Response{
				ErrorCode: 0,
				Fields:    []string{"TRADE_CODE", "SEC_NAME", "PROVINCE", "WICSNAME2024", "MKT", "IPO_DATE"},
				Data: [][]interface{}{
					{"000001"},
					{"平安银行"},
					{"广东"},
					{"银行"},
					{"深圳主板"},
					{"1991-04-03"},
				},
			}, nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	info := p.StockInfo("000001")
	if info["name"] != "平安银行" {
		t.Errorf("name = %q", info["name"])
	}
	if info["industry"] != "银行" {
		t.Errorf("industry = %q", info["industry"])
	}
	if info["source"] != "wind" {
		t.Errorf("source = %q", info["source"])
	}
}

// TestStockInfoDisconnected 连接不可用时返回整套占位信息
func TestStockInfoDisconnected(t *testing.T) {
	term := &fakeTerminal{startErr: fmt.Errorf("terminal offline")}
	p := NewProviderWith(term, nil, zap.NewNop())

	info := p.StockInfo("000001")
	want := map[string]string{
		"symbol":    "000001",
		"code":      "000001",
		"name":      "股票000001",
		"area":      "未知",
		"industry":  "未知",
		"market":    "未知",
		"list_date": "未知",
		"source":    "wind_error",
	}
	for k, v := range want {
		if info[k] != v {
			t.Errorf("info[%q] = %q, want %q", k, info[k], v)
		}
	}
}

// TestFinancialDataPartialFailure 单张报表失败不阻断其余两张
func TestFinancialDataPartialFailure(t *testing.T) {
	term := &fakeTerminal{
		wssFn: func(codes, fields, options string) (*Response, error) {
			if fields == incomeStatementFields {
				return nil, fmt.Errorf("income statement unavailable")
			}
			return &Response{
				ErrorCode: 0,
				Fields:    []string{"TRADE_CODE", "TOT_ASSETS"},
				Data: [][]interface{}{
					{"600519"},
					{2.7e11},
				},
			}, nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	fin := p.FinancialData("600519", "20231231")
	if len(fin.BalanceSheet) != 1 {
		t.Errorf("balance sheet rows = %d, want 1", len(fin.BalanceSheet))
	}
	if len(fin.CashFlow) != 1 {
		t.Errorf("cash flow rows = %d, want 1", len(fin.CashFlow))
	}
	if len(fin.IncomeStatement) != 0 {
		t.Errorf("income statement should be empty, got %d rows", len(fin.IncomeStatement))
	}
	if term.wssCalls != 3 {
		t.Errorf("all three statements should be attempted, got %d calls", term.wssCalls)
	}
}

// TestFinancialDataDisconnected 连接不可用时三张报表均为空序列
func TestFinancialDataDisconnected(t *testing.T) {
	term := &fakeTerminal{startErr: fmt.Errorf("terminal offline")}
	p := NewProviderWith(term, nil, zap.NewNop())

	fin := p.FinancialData("600519", "20231231")
	if len(fin.BalanceSheet) != 0 || len(fin.IncomeStatement) != 0 || len(fin.CashFlow) != 0 {
		t.Errorf("expected empty snapshot, got %+v", fin)
	}
	if term.wssCalls != 0 {
		t.Errorf("no remote call expected when disconnected, got %d", term.wssCalls)
	}
}

// TestSearchStocks 测试关键字搜索
func TestSearchStocks(t *testing.T) {
	term := &fakeTerminal{
		wsetFn: func(report, options string) (*Response, error) {
			return stockListResponse(), nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	byName := p.SearchStocks("茅台")
	if byName.Len() != 1 {
		t.Fatalf("search by name: %d rows, want 1", byName.Len())
	}
	if v := byName.Value(0, "ts_code"); v != "600519.SH" {
		t.Errorf("search by name ts_code = %v", v)
	}

	byCode := p.SearchStocks("000001")
	if byCode.Len() != 1 {
		t.Errorf("search by code: %d rows, want 1", byCode.Len())
	}

	none := p.SearchStocks("不存在的公司")
	if none.Len() != 0 {
		t.Errorf("search miss should be empty, got %d rows", none.Len())
	}
}

// TestSearchStocksEmptyList 列表为空时搜索返回空表
func TestSearchStocksEmptyList(t *testing.T) {
	term := &fakeTerminal{startErr: fmt.Errorf("terminal offline")}
	p := NewProviderWith(term, nil, zap.NewNop())

	if got := p.SearchStocks("茅台"); !got.Empty() {
		t.Errorf("expected empty table, got %d rows", got.Len())
	}
}

// TestEnsureConnectedReconnect 会话失效后透明重建一次
func TestEnsureConnectedReconnect(t *testing.T) {
	term := &fakeTerminal{
		wsdFn: func(codes, fields, beginTime, endTime, options string) (*Response, error) {
			return dailyResponse(), nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	if got := p.StockDaily("000001", "2024-01-01", "2024-01-05"); got.Empty() {
		t.Fatal("first fetch should succeed")
	}
	if term.startCalls != 1 {
		t.Fatalf("start calls = %d, want 1", term.startCalls)
	}

	// 模拟底层会话断开
	term.connected = false

	if got := p.StockDaily("000001", "2024-01-01", "2024-01-05"); got.Empty() {
		t.Fatal("fetch after reconnect should succeed")
	}
	if term.startCalls != 2 {
		t.Errorf("start calls = %d, want 2 (one reconnect)", term.startCalls)
	}
}

// TestEnsureConnectedIdempotent 已连接时不重复建立会话
func TestEnsureConnectedIdempotent(t *testing.T) {
	term := &fakeTerminal{
		wsdFn: func(codes, fields, beginTime, endTime, options string) (*Response, error) {
			return dailyResponse(), nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())

	p.StockDaily("000001", "2024-01-01", "2024-01-05")
	p.StockDaily("600000", "2024-01-01", "2024-01-05")

	if term.startCalls != 1 {
		t.Errorf("start calls = %d, want 1", term.startCalls)
	}
}

// TestProviderClose 测试释放提供器不抛出且会话被关闭
func TestProviderClose(t *testing.T) {
	term := &fakeTerminal{
		wsdFn: func(codes, fields, beginTime, endTime, options string) (*Response, error) {
			return dailyResponse(), nil
		},
	}
	p := NewProviderWith(term, nil, zap.NewNop())
	p.StockDaily("000001", "2024-01-01", "2024-01-05")

	p.Close()
	if term.connected {
		t.Error("terminal session should be stopped after Close")
	}

	// 再次 Close 也不应有副作用
	p.Close()
}

// TestDefaultProvider 测试进程级共享实例
func TestDefaultProvider(t *testing.T) {
	// 缓存文件落在临时目录
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	ResetDefault()
	defer ResetDefault()

	p1 := Default()
	p2 := Default()
	if p1 != p2 {
		t.Error("Default should hand out one shared instance")
	}

	ResetDefault()
	p3 := Default()
	if p3 == p1 {
		t.Error("ResetDefault should discard the shared instance")
	}
}
