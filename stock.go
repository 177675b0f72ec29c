package windgo

import (
	"time"

	"go.uber.org/zap"
)

const (
	// 证券列表缓存的逻辑键与新鲜度窗口
	stockListCacheKey    = "wind_stock_list"
	stockListMaxAgeHours = 24

	// 日线数据按代码缓存的新鲜度窗口
	dailyMaxAgeHours = 24

	stockListReport  = "listedsecuritygeneralview"
	stockListOptions = "sectorid=a001010100000000;field=wind_code,sec_name,trade_status,ipo_date,province,sec_type,listing_board,exchange"

	dailyFields  = "open,high,low,close,pre_close,chg,pct_chg,volume,amt"
	dailyOptions = "unit=1;Fill=Previous"

	stockInfoFields = "trade_code,sec_name,province,wicsname2024,mkt,ipo_date"
)

// 终端字段名到标准列名的映射，与参考数据源的表头保持一致
var stockListColumns = [][2]string{
	{"WIND_CODE", "ts_code"},
	{"SEC_NAME", "name"},
	{"TRADE_STATUS", "list_status"},
	{"IPO_DATE", "list_date"},
	{"PROVINCE", "area"},
	{"SEC_TYPE", "market"},
	{"LISTING_BOARD", "industry"},
	{"EXCHANGE", "exchange"},
}

var dailyColumns = [][2]string{
	{"OPEN", "open"},
	{"HIGH", "high"},
	{"LOW", "low"},
	{"CLOSE", "close"},
	{"PRE_CLOSE", "pre_close"},
	{"CHG", "change"},
	{"PCT_CHG", "pct_chg"},
	{"VOLUME", "vol"},
	{"AMT", "amount"},
}

func hoursToDuration(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}

// StockList 获取 A 股证券列表
//
// 结果带标准列 ts_code/name/list_status/list_date/area/market/industry/
// exchange/symbol；连接不可用或远程出错时返回空表。
func (p *Provider) StockList() *Table {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ensureConnected() {
		p.logger.Error("terminal unavailable, cannot fetch stock list")
		return NewTable()
	}

	if t := p.cacheFind(stockListCacheKey, stockListMaxAgeHours); t != nil {
		return t
	}

	p.logger.Info("fetching stock list from terminal")

	resp, err := p.terminal.WSet(stockListReport, stockListOptions)
	if err != nil {
		p.logger.Error("stock list request failed", zap.Error(err))
		return NewTable()
	}
	if resp.ErrorCode != 0 {
		p.logger.Error("stock list request rejected", zap.Int("error_code", resp.ErrorCode))
		return NewTable()
	}

	t := tableFromResponse(resp, "")
	if t.Empty() {
		p.logger.Warn("terminal returned empty stock list")
		return t
	}

	translateColumns(t, stockListColumns)

	// symbol 列：去掉交易所后缀的裸代码
	if t.HasColumn("ts_code") && !t.HasColumn("symbol") {
		codes := t.Col("ts_code")
		bare := make([]interface{}, len(codes))
		for i, c := range codes {
			bare[i] = BareSymbol(cellString(c))
		}
		t.AddColumn("symbol", bare)
	}

	p.logger.Info("stock list fetched", zap.Int("rows", t.Len()))
	p.cacheSave(stockListCacheKey, t)
	return t
}

// StockDaily 获取股票日线数据
//
// 日期格式 YYYY-MM-DD；startDate 缺省为一年前，endDate 缺省为当天。
// 结果按交易日一行，带标准列 open/high/low/close/pre_close/change/
// pct_chg/vol/amount/ts_code/trade_date；连接不可用、远程错误码非 0
// 或空载荷时返回空表。
func (p *Provider) StockDaily(symbol, startDate, endDate string) *Table {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ensureConnected() {
		p.logger.Error("terminal unavailable, cannot fetch daily bars",
			zap.String("symbol", symbol))
		return NewTable()
	}

	windCode := NormalizeSymbol(symbol)

	if endDate == "" {
		endDate = time.Now().Format("2006-01-02")
	}
	if startDate == "" {
		startDate = time.Now().AddDate(-1, 0, 0).Format("2006-01-02")
	}

	if t := p.cacheFind(symbol, dailyMaxAgeHours); t != nil {
		return t
	}

	p.logger.Info("fetching daily bars from terminal",
		zap.String("wind_code", windCode),
		zap.String("start", startDate),
		zap.String("end", endDate))

	resp, err := p.terminal.WSD(windCode, dailyFields, startDate, endDate, dailyOptions)
	if err != nil {
		p.logger.Error("daily bars request failed",
			zap.String("wind_code", windCode),
			zap.Error(err))
		return NewTable()
	}
	if resp.ErrorCode != 0 {
		p.logger.Error("daily bars request rejected",
			zap.String("wind_code", windCode),
			zap.Int("error_code", resp.ErrorCode))
		return NewTable()
	}
	if len(resp.Data) == 0 {
		p.logger.Warn("terminal returned empty daily bars",
			zap.String("wind_code", windCode))
		return NewTable()
	}

	t := tableFromResponse(resp, "trade_date")
	if t.Empty() {
		p.logger.Warn("terminal returned empty daily bars",
			zap.String("wind_code", windCode))
		return t
	}

	translateColumns(t, dailyColumns)
	t.AddConstColumn("ts_code", windCode)

	p.logger.Info("daily bars fetched",
		zap.String("wind_code", windCode),
		zap.Int("rows", t.Len()))
	p.cacheSave(symbol, t)
	return t
}

// StockInfo 获取股票基本信息
//
// 返回 symbol/code/name/area/industry/market/list_date/source 八个键；
// 无法解析的字段回退为可读占位值，失败时返回整套占位值，从不抛出。
func (p *Provider) StockInfo(symbol string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ensureConnected() {
		p.logger.Error("terminal unavailable, cannot fetch stock info",
			zap.String("symbol", symbol))
		return stockInfoPlaceholder(symbol, "wind_error")
	}

	windCode := NormalizeSymbol(symbol)

	resp, err := p.terminal.WSD(windCode, stockInfoFields, "2024-01-01", "2024-01-02", "")
	if err != nil {
		p.logger.Error("stock info request failed",
			zap.String("wind_code", windCode),
			zap.Error(err))
		return stockInfoPlaceholder(symbol, "wind_error")
	}

	if resp.ErrorCode == 0 && len(resp.Data) > 0 {
		t := tableFromResponse(resp, "")
		if !t.Empty() {
			return map[string]string{
				"symbol":    symbol,
				"code":      t.StringValue(0, "TRADE_CODE", symbol),
				"name":      t.StringValue(0, "SEC_NAME", "股票"+symbol),
				"area":      t.StringValue(0, "PROVINCE", "未知"),
				"industry":  t.StringValue(0, "WICSNAME2024", "未知"),
				"market":    t.StringValue(0, "MKT", "未知"),
				"list_date": t.StringValue(0, "IPO_DATE", "未知"),
				"source":    SourceTag,
			}
		}
	}

	p.logger.Warn("terminal returned no stock info",
		zap.String("wind_code", windCode),
		zap.Int("error_code", resp.ErrorCode))
	return stockInfoPlaceholder(symbol, SourceTag)
}

// stockInfoPlaceholder 由代码推导的占位信息，形状与正常结果一致
func stockInfoPlaceholder(symbol, source string) map[string]string {
	return map[string]string{
		"symbol":    symbol,
		"code":      symbol,
		"name":      "股票" + symbol,
		"area":      "未知",
		"industry":  "未知",
		"market":    "未知",
		"list_date": "未知",
		"source":    source,
	}
}

// SearchStocks 按关键字搜索股票
//
// 在证券列表的 name/symbol/ts_code 三列上做区分大小写的子串匹配，
// 复用 StockList 自身的缓存；列表为空时返回空表。
func (p *Provider) SearchStocks(keyword string) *Table {
	list := p.StockList()
	if list.Empty() {
		return NewTable(list.Columns...)
	}

	result := list.Filter(func(row []interface{}) bool {
		return rowContains(list, row, keyword, "name", "symbol", "ts_code")
	})

	p.logger.Debug("stock search done",
		zap.String("keyword", keyword),
		zap.Int("matches", result.Len()))
	return result
}
